package keystone

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// DefaultMaxFragmentLen is the per-frame byte budget used by the confirm screen.
const DefaultMaxFragmentLen = 400

const minFragmentLen = 10

var (
	ErrInconsistentPart = errors.New("fragment does not belong to the current message")
	ErrMixedFragment    = errors.New("fountain-mixed fragments are not supported")
	ErrIncomplete       = errors.New("UR is not complete yet")
)

// part is the CBOR body of one multi-part frame.
type part struct {
	_          struct{} `cbor:",toarray"`
	SeqNum     uint32
	SeqLen     int
	MessageLen int
	Checksum   uint32
	Data       []byte
}

// Encoder splits a UR into equally sized fragments and hands them out in a
// fixed cycle. Not safe for concurrent use.
type Encoder struct {
	ur         *UR
	fragments  [][]byte
	messageLen int
	checksum   uint32
	index      int
}

// NewEncoder prepares ur for transmission with at most maxFragmentLen bytes per frame.
func NewEncoder(ur *UR, maxFragmentLen int) (*Encoder, error) {
	if ur == nil {
		return nil, fmt.Errorf("%w: nil UR", ErrInvalidUR)
	}
	if maxFragmentLen < minFragmentLen {
		return nil, fmt.Errorf("max fragment length must be at least %d", minFragmentLen)
	}

	fragLen := nominalFragmentLen(len(ur.CBOR), maxFragmentLen)
	return &Encoder{
		ur:         ur,
		fragments:  splitMessage(ur.CBOR, fragLen),
		messageLen: len(ur.CBOR),
		checksum:   crc32.ChecksumIEEE(ur.CBOR),
	}, nil
}

// nominalFragmentLen picks the smallest fragment count whose even split fits the budget.
func nominalFragmentLen(messageLen, maxFragmentLen int) int {
	maxCount := messageLen / minFragmentLen
	if maxCount < 1 {
		maxCount = 1
	}
	fragLen := messageLen
	for count := 1; count <= maxCount; count++ {
		fragLen = (messageLen + count - 1) / count
		if fragLen <= maxFragmentLen {
			break
		}
	}
	if fragLen < 1 {
		fragLen = 1
	}
	return fragLen
}

// splitMessage zero-pads the last fragment so all fragments share one length.
func splitMessage(msg []byte, fragLen int) [][]byte {
	var out [][]byte
	for off := 0; off < len(msg) || len(out) == 0; off += fragLen {
		frag := make([]byte, fragLen)
		if off < len(msg) {
			copy(frag, msg[off:])
		}
		out = append(out, frag)
	}
	return out
}

// SeqLen is the number of fragments in one cycle.
func (e *Encoder) SeqLen() int {
	return len(e.fragments)
}

// IsSinglePart reports whether the whole UR fits into one frame.
func (e *Encoder) IsSinglePart() bool {
	return len(e.fragments) == 1
}

// Index is the zero-based index of the fragment NextPart will return.
func (e *Encoder) Index() int {
	return e.index
}

// Reset restarts the cycle at fragment zero.
func (e *Encoder) Reset() {
	e.index = 0
}

// NextPart returns the next frame and advances the index, wrapping to zero
// after the last fragment.
func (e *Encoder) NextPart() string {
	if e.IsSinglePart() {
		return e.ur.String()
	}

	i := e.index
	e.index = (e.index + 1) % len(e.fragments)

	body, err := cbor.Marshal(part{
		SeqNum:     uint32(i + 1),
		SeqLen:     len(e.fragments),
		MessageLen: e.messageLen,
		Checksum:   e.checksum,
		Data:       e.fragments[i],
	})
	if err != nil {
		// Marshalling a fixed struct of ints and bytes cannot fail.
		panic(err)
	}
	return fmt.Sprintf("%s%s/%d-%d/%s", urScheme, e.ur.Type, i+1, len(e.fragments), encodeMinimal(body))
}

// Decoder collects frames until the UR is complete.
type Decoder struct {
	typ        string
	seqLen     int
	messageLen int
	checksum   uint32
	fragments  map[int][]byte
	result     *UR
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{fragments: make(map[int][]byte)}
}

// Receive feeds one scanned frame. Duplicate frames are ignored.
func (d *Decoder) Receive(s string) error {
	if d.result != nil {
		return nil
	}

	typ, components, err := splitUR(s)
	if err != nil {
		return err
	}
	if len(components) == 1 {
		ur, err := ParseUR(s)
		if err != nil {
			return err
		}
		d.result = ur
		return nil
	}

	seqNum, seqLen, err := parseSeq(components[0])
	if err != nil {
		return err
	}
	body, err := decodeMinimal(components[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUR, err)
	}
	var p part
	if err := cbor.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUR, err)
	}
	if int(p.SeqNum) != seqNum || p.SeqLen != seqLen {
		return fmt.Errorf("%w: header and body disagree", ErrInvalidUR)
	}
	if seqNum > seqLen {
		return ErrMixedFragment
	}

	if len(d.fragments) == 0 {
		d.typ, d.seqLen, d.messageLen, d.checksum = typ, p.SeqLen, p.MessageLen, p.Checksum
	} else if typ != d.typ || p.SeqLen != d.seqLen || p.MessageLen != d.messageLen || p.Checksum != d.checksum {
		return ErrInconsistentPart
	}

	d.fragments[seqNum-1] = p.Data
	if len(d.fragments) == d.seqLen {
		return d.assemble()
	}
	return nil
}

func (d *Decoder) assemble() error {
	var buf bytes.Buffer
	for i := 0; i < d.seqLen; i++ {
		buf.Write(d.fragments[i])
	}
	if buf.Len() < d.messageLen {
		return ErrInconsistentPart
	}
	msg := buf.Bytes()[:d.messageLen]
	if crc32.ChecksumIEEE(msg) != d.checksum {
		d.fragments = make(map[int][]byte)
		return ErrChecksumMismatch
	}
	d.result = &UR{Type: d.typ, CBOR: append([]byte(nil), msg...)}
	return nil
}

func parseSeq(s string) (int, int, error) {
	num, total, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: bad sequence %q", ErrInvalidUR, s)
	}
	seqNum, err1 := strconv.Atoi(num)
	seqLen, err2 := strconv.Atoi(total)
	if err1 != nil || err2 != nil || seqNum < 1 || seqLen < 1 {
		return 0, 0, fmt.Errorf("%w: bad sequence %q", ErrInvalidUR, s)
	}
	return seqNum, seqLen, nil
}

// IsComplete reports whether Result is available.
func (d *Decoder) IsComplete() bool {
	return d.result != nil
}

// Progress is the fraction of fragments received.
func (d *Decoder) Progress() float64 {
	if d.result != nil {
		return 1
	}
	if d.seqLen == 0 {
		return 0
	}
	return float64(len(d.fragments)) / float64(d.seqLen)
}

// Result returns the reassembled UR.
func (d *Decoder) Result() (*UR, error) {
	if d.result == nil {
		return nil, ErrIncomplete
	}
	return d.result, nil
}
