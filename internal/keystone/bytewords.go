package keystone

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"
)

var (
	ErrInvalidBytewords = errors.New("invalid bytewords")
	ErrChecksumMismatch = errors.New("bytewords checksum mismatch")
)

// bytewords is the BCR-2020-012 word list; minimal encoding keeps the first
// and last letter of each word.
var bytewords = strings.Fields(`
able acid also apex aqua arch atom aunt away axis back bald barn belt
beta bias blue body brag brew bulb buzz calm cash cats chef city claw
code cola cook cost crux curl cusp cyan dark data days deli dice diet
door down draw drop drum dull duty each easy echo edge epic even exam
exit eyes fact fair fern figs film fish fizz flap flew flux foxy free
frog fuel fund gala game gear gems gift girl glow good gray grim guru
gush gyro half hang hard hawk heat help high hill holy hope horn huts
iced idea idle inch inky into iris iron item jade jazz join jolt jowl
judo jugs jump junk jury keep keno kept keys kick kiln king kite kiwi
knob lamb lava lazy leaf legs liar limp lion list logo loud love luau
luck lung main many math maze memo menu meow mild mint miss monk nail
navy need news next noon note numb obey oboe omit onyx open oval owls
paid part peck play plus poem pool pose puff puma purr quad quiz race
ramp real redo rich road rock roof ruby ruin runs rust safe saga scar
sets silk skew slot soap solo song stub surf swan taco task taxi tent
tied time tiny toil tomb toys trip tuna twin ugly undo unit urge user
vast very veto vial vibe view visa void vows wall wand warm wasp wave
waxy webs what when whiz wolf work yank yawn yell yoga yurt zaps zero
zest zinc zone zoom
`)

var minimalIndex = func() map[string]byte {
	m := make(map[string]byte, len(bytewords))
	for i, w := range bytewords {
		m[minimalWord(w)] = byte(i)
	}
	return m
}()

func minimalWord(w string) string {
	return string([]byte{w[0], w[len(w)-1]})
}

// encodeMinimal appends a CRC32 of data and encodes everything as minimal bytewords.
func encodeMinimal(data []byte) string {
	buf := make([]byte, 0, len(data)+4)
	buf = append(buf, data...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(data))

	var sb strings.Builder
	sb.Grow(len(buf) * 2)
	for _, b := range buf {
		sb.WriteString(minimalWord(bytewords[b]))
	}
	return sb.String()
}

// decodeMinimal reverses encodeMinimal and verifies the checksum.
func decodeMinimal(s string) ([]byte, error) {
	s = strings.ToLower(s)
	if len(s)%2 != 0 || len(s) < 8+2 {
		return nil, ErrInvalidBytewords
	}

	buf := make([]byte, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		b, ok := minimalIndex[s[i:i+2]]
		if !ok {
			return nil, ErrInvalidBytewords
		}
		buf = append(buf, b)
	}

	body, sum := buf[:len(buf)-4], buf[len(buf)-4:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(sum) {
		return nil, ErrChecksumMismatch
	}
	return body, nil
}
