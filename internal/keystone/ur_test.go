package keystone

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytewords(t *testing.T) {
	t.Run("word list is complete and minimal forms are unique", func(t *testing.T) {
		require.Len(t, bytewords, 256)
		assert.Len(t, minimalIndex, 256)
	})

	t.Run("round trips", func(t *testing.T) {
		data := []byte{0x00, 0x01, 0x7f, 0x80, 0xff}
		got, err := decodeMinimal(encodeMinimal(data))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("decoding is case-insensitive", func(t *testing.T) {
		data := []byte("hello")
		got, err := decodeMinimal(strings.ToUpper(encodeMinimal(data)))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("detects corruption", func(t *testing.T) {
		enc := []byte(encodeMinimal([]byte("hello")))
		// "ae" and "ad" are both valid minimal words (able, acid).
		if enc[0] == 'a' && enc[1] == 'e' {
			enc[1] = 'd'
		} else {
			enc[0], enc[1] = 'a', 'e'
		}
		_, err := decodeMinimal(string(enc))
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("rejects unknown words", func(t *testing.T) {
		_, err := decodeMinimal("xxxxxxxxxxxx")
		assert.ErrorIs(t, err, ErrInvalidBytewords)
	})
}

func TestUR(t *testing.T) {
	t.Run("single part round trip", func(t *testing.T) {
		ur, err := NewUR("bytes", []byte{0x43, 1, 2, 3})
		require.NoError(t, err)

		s := ur.String()
		assert.True(t, strings.HasPrefix(s, "ur:bytes/"))

		parsed, err := ParseUR(strings.ToUpper(s))
		require.NoError(t, err)
		assert.Equal(t, ur, parsed)
	})

	t.Run("rejects bad type", func(t *testing.T) {
		_, err := NewUR("Bad_Type", nil)
		assert.ErrorIs(t, err, ErrInvalidUR)
	})

	t.Run("rejects missing scheme", func(t *testing.T) {
		_, err := ParseUR("bytes/aeadaolazmjendeo")
		assert.ErrorIs(t, err, ErrInvalidUR)
	})

	t.Run("multi part needs a decoder", func(t *testing.T) {
		_, err := ParseUR("ur:bytes/1-2/aeadaolazmjendeo")
		assert.ErrorIs(t, err, ErrInvalidUR)
	})
}

func bigUR(t *testing.T, size int) *UR {
	t.Helper()
	payload := bytes.Repeat([]byte{0xab, 0xcd, 0x01}, size/3+1)[:size]
	ur, err := NewUR("bytes", payload)
	require.NoError(t, err)
	return ur
}

func TestEncoder(t *testing.T) {
	t.Run("small payload is single part", func(t *testing.T) {
		ur := bigUR(t, 50)
		enc, err := NewEncoder(ur, DefaultMaxFragmentLen)
		require.NoError(t, err)

		assert.True(t, enc.IsSinglePart())
		assert.Equal(t, ur.String(), enc.NextPart())
		assert.Equal(t, ur.String(), enc.NextPart())
	})

	t.Run("fragments respect the byte budget", func(t *testing.T) {
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		assert.Equal(t, 3, enc.SeqLen())
		for _, f := range enc.fragments {
			assert.LessOrEqual(t, len(f), DefaultMaxFragmentLen)
			assert.Len(t, f, len(enc.fragments[0]))
		}
	})

	t.Run("index advances and wraps to zero", func(t *testing.T) {
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		var parts []string
		for i := 0; i < 7; i++ {
			assert.Equal(t, i%3, enc.Index())
			parts = append(parts, enc.NextPart())
		}
		assert.True(t, strings.HasPrefix(parts[0], "ur:bytes/1-3/"))
		assert.True(t, strings.HasPrefix(parts[2], "ur:bytes/3-3/"))
		assert.Equal(t, parts[0], parts[3])
		assert.Equal(t, parts[1], parts[4])
		assert.Equal(t, parts[0], parts[6])
	})

	t.Run("reset restarts from fragment zero", func(t *testing.T) {
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		first := enc.NextPart()
		enc.NextPart()
		enc.Reset()
		assert.Equal(t, 0, enc.Index())
		assert.Equal(t, first, enc.NextPart())
	})

	t.Run("rejects tiny budget", func(t *testing.T) {
		_, err := NewEncoder(bigUR(t, 100), 5)
		require.Error(t, err)
	})
}

func TestDecoder(t *testing.T) {
	t.Run("reassembles out of order with duplicates", func(t *testing.T) {
		ur := bigUR(t, 1337)
		enc, err := NewEncoder(ur, 200)
		require.NoError(t, err)

		parts := make([]string, enc.SeqLen())
		for i := range parts {
			parts[i] = enc.NextPart()
		}

		dec := NewDecoder()
		for i := len(parts) - 1; i >= 1; i-- {
			require.NoError(t, dec.Receive(parts[i]))
			require.NoError(t, dec.Receive(parts[i]))
		}
		assert.False(t, dec.IsComplete())
		assert.Greater(t, dec.Progress(), 0.5)

		_, err = dec.Result()
		assert.ErrorIs(t, err, ErrIncomplete)

		require.NoError(t, dec.Receive(parts[0]))
		require.True(t, dec.IsComplete())
		got, err := dec.Result()
		require.NoError(t, err)
		assert.Equal(t, ur, got)
	})

	t.Run("single part completes immediately", func(t *testing.T) {
		ur := bigUR(t, 20)
		dec := NewDecoder()
		require.NoError(t, dec.Receive(ur.String()))
		got, err := dec.Result()
		require.NoError(t, err)
		assert.Equal(t, ur, got)
	})

	t.Run("rejects parts from another message", func(t *testing.T) {
		a, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)
		b, err := NewEncoder(bigUR(t, 900), DefaultMaxFragmentLen)
		require.NoError(t, err)

		dec := NewDecoder()
		require.NoError(t, dec.Receive(a.NextPart()))
		assert.ErrorIs(t, dec.Receive(b.NextPart()), ErrInconsistentPart)
	})
}
