package keystone

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// CBOR tags from the BC-UR registry.
const (
	tagUUID    = 37
	tagKeypath = 304
)

// DefaultOrigin identifies this app on the device screen.
const DefaultOrigin = "tonsigner"

// MessageType is what the device is asked to sign.
type MessageType string

const (
	MessageTransaction MessageType = "transaction"
	MessageTonProof    MessageType = "ton-proof"
)

var ErrUnknownMessageType = errors.New("unknown keystone message type")

func (t MessageType) dataType() (int, error) {
	switch t {
	case MessageTransaction:
		return 1, nil
	case MessageTonProof:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMessageType, t)
	}
}

func messageTypeFromData(dt int) (MessageType, error) {
	switch dt {
	case 1:
		return MessageTransaction, nil
	case 2:
		return MessageTonProof, nil
	default:
		return "", fmt.Errorf("%w: data type %d", ErrUnknownMessageType, dt)
	}
}

// SignRequest asks the device to sign SignData with the key at DerivationPath.
type SignRequest struct {
	RequestID      uuid.UUID
	SignData       []byte
	Type           MessageType
	DerivationPath string
	XFP            string
	Address        string
	Origin         string
}

type cborSignRequest struct {
	RequestID      *cbor.RawTag `cbor:"1,keyasint,omitempty"`
	SignData       []byte       `cbor:"2,keyasint"`
	DataType       int          `cbor:"3,keyasint"`
	DerivationPath *cbor.RawTag `cbor:"4,keyasint,omitempty"`
	Address        string       `cbor:"5,keyasint,omitempty"`
	Origin         string       `cbor:"6,keyasint,omitempty"`
}

type cborKeypath struct {
	Components        []any  `cbor:"1,keyasint"`
	SourceFingerprint uint32 `cbor:"2,keyasint,omitempty"`
}

// ToUR encodes the request as a ton-sign-request UR.
func (r SignRequest) ToUR() (*UR, error) {
	dt, err := r.Type.dataType()
	if err != nil {
		return nil, err
	}

	out := cborSignRequest{
		SignData: r.SignData,
		DataType: dt,
		Address:  r.Address,
		Origin:   r.Origin,
	}

	idTag, err := rawTag(tagUUID, r.RequestID[:])
	if err != nil {
		return nil, err
	}
	out.RequestID = idTag

	if r.DerivationPath != "" {
		kp, err := newKeypath(r.DerivationPath, r.XFP)
		if err != nil {
			return nil, err
		}
		pathTag, err := rawTag(tagKeypath, kp)
		if err != nil {
			return nil, err
		}
		out.DerivationPath = pathTag
	}

	payload, err := cbor.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode sign request: %w", err)
	}
	return NewUR(TypeSignRequest, payload)
}

// ParseSignRequest decodes a ton-sign-request UR.
func ParseSignRequest(ur *UR) (*SignRequest, error) {
	if ur == nil || ur.Type != TypeSignRequest {
		return nil, ErrInvalidScanType
	}

	var in cborSignRequest
	if err := cbor.Unmarshal(ur.CBOR, &in); err != nil {
		return nil, fmt.Errorf("decode sign request: %w", err)
	}
	mt, err := messageTypeFromData(in.DataType)
	if err != nil {
		return nil, err
	}

	req := &SignRequest{SignData: in.SignData, Type: mt, Address: in.Address, Origin: in.Origin}
	if in.RequestID != nil {
		id, err := decodeUUIDTag(in.RequestID)
		if err != nil {
			return nil, err
		}
		req.RequestID = id
	}
	if in.DerivationPath != nil {
		path, xfp, err := decodeKeypathTag(in.DerivationPath)
		if err != nil {
			return nil, err
		}
		req.DerivationPath, req.XFP = path, xfp
	}
	return req, nil
}

func rawTag(number uint64, content any) (*cbor.RawTag, error) {
	raw, err := cbor.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode tag %d: %w", number, err)
	}
	return &cbor.RawTag{Number: number, Content: raw}, nil
}

func decodeUUIDTag(t *cbor.RawTag) (uuid.UUID, error) {
	if t.Number != tagUUID {
		return uuid.Nil, fmt.Errorf("%w: expected uuid tag, got %d", ErrInvalidUR, t.Number)
	}
	var raw []byte
	if err := cbor.Unmarshal(t.Content, &raw); err != nil {
		return uuid.Nil, fmt.Errorf("decode request id: %w", err)
	}
	return uuid.FromBytes(raw)
}

func decodeKeypathTag(t *cbor.RawTag) (string, string, error) {
	if t.Number != tagKeypath {
		return "", "", fmt.Errorf("%w: expected keypath tag, got %d", ErrInvalidUR, t.Number)
	}
	var kp cborKeypath
	if err := cbor.Unmarshal(t.Content, &kp); err != nil {
		return "", "", fmt.Errorf("decode keypath: %w", err)
	}
	path, err := formatPath(kp.Components)
	if err != nil {
		return "", "", err
	}
	xfp := ""
	if kp.SourceFingerprint != 0 {
		xfp = fmt.Sprintf("%08x", kp.SourceFingerprint)
	}
	return path, xfp, nil
}

func newKeypath(path, xfp string) (*cborKeypath, error) {
	components, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	kp := &cborKeypath{Components: components}
	if xfp != "" {
		fp, err := strconv.ParseUint(xfp, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid xfp %q: %w", xfp, err)
		}
		kp.SourceFingerprint = uint32(fp)
	}
	return kp, nil
}

// parsePath turns "m/44'/607'/0'" into [44 true 607 true 0 true].
func parsePath(path string) ([]any, error) {
	segments := strings.Split(strings.TrimPrefix(strings.TrimSpace(path), "m/"), "/")
	out := make([]any, 0, len(segments)*2)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("invalid derivation path %q", path)
		}
		hardened := strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h")
		seg = strings.TrimRight(seg, "'h")
		idx, err := strconv.ParseUint(seg, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
		}
		out = append(out, idx, hardened)
	}
	return out, nil
}

func formatPath(components []any) (string, error) {
	if len(components)%2 != 0 {
		return "", fmt.Errorf("%w: odd keypath components", ErrInvalidUR)
	}
	var sb strings.Builder
	sb.WriteString("m")
	for i := 0; i < len(components); i += 2 {
		idx, ok := components[i].(uint64)
		if !ok {
			return "", fmt.Errorf("%w: keypath index is %T", ErrInvalidUR, components[i])
		}
		hardened, ok := components[i+1].(bool)
		if !ok {
			return "", fmt.Errorf("%w: keypath flag is %T", ErrInvalidUR, components[i+1])
		}
		sb.WriteString("/" + strconv.FormatUint(idx, 10))
		if hardened {
			sb.WriteString("'")
		}
	}
	return sb.String(), nil
}

// SignDataHex is the payload as shown in logs and debug output.
func (r SignRequest) SignDataHex() string {
	return hex.EncodeToString(r.SignData)
}
