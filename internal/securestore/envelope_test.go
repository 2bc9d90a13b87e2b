package securestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKDF = KDFParams{Time: 1, Memory: 1024, Threads: 1}

func TestEnvelope(t *testing.T) {
	aad := []byte("vault-main")

	t.Run("opens with the right passcode", func(t *testing.T) {
		env, err := SealWithPasscode("123456", []byte("word1 word2"), aad, testKDF)
		require.NoError(t, err)

		plain, err := OpenWithPasscode("123456", env, aad)
		require.NoError(t, err)
		assert.Equal(t, "word1 word2", string(plain))
	})

	t.Run("wrong passcode fails generically", func(t *testing.T) {
		env, err := SealWithPasscode("123456", []byte("x"), aad, testKDF)
		require.NoError(t, err)

		_, err = OpenWithPasscode("000000", env, aad)
		assert.ErrorIs(t, err, ErrInvalidPasscodeOrCorrupt)
	})

	t.Run("wrong aad fails", func(t *testing.T) {
		env, err := SealWithPasscode("123456", []byte("x"), aad, testKDF)
		require.NoError(t, err)

		_, err = OpenWithPasscode("123456", env, []byte("vault-other"))
		assert.ErrorIs(t, err, ErrInvalidPasscodeOrCorrupt)
	})

	t.Run("unknown version fails", func(t *testing.T) {
		env, err := SealWithPasscode("123456", []byte("x"), aad, testKDF)
		require.NoError(t, err)
		env.Version = 2

		_, err = OpenWithPasscode("123456", env, aad)
		assert.ErrorIs(t, err, ErrInvalidPasscodeOrCorrupt)
	})

	t.Run("nil envelope fails", func(t *testing.T) {
		_, err := OpenWithPasscode("123456", nil, aad)
		assert.ErrorIs(t, err, ErrInvalidPasscodeOrCorrupt)
	})
}
