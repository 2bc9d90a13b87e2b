package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonsigner/tonsigner/internal/chain"
)

func TestCredential_Validate(t *testing.T) {
	pk := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		cred    Credential
		wantErr error
	}{
		{"regular", Credential{Identifier: "a", Type: TypeRegular, PublicKey: pk}, nil},
		{"signer deeplink", Credential{Identifier: "a", Type: TypeSignerDeeplink, PublicKey: pk}, nil},
		{"keystone with meta", Credential{Identifier: "a", Type: TypeKeystone, PublicKey: pk, Keystone: &KeystoneMeta{}}, nil},
		{"ledger without meta", Credential{Identifier: "a", Type: TypeLedger, PublicKey: pk}, ErrMissingMetadata},
		{"bad pubkey", Credential{Identifier: "a", Type: TypeRegular, PublicKey: "zz"}, ErrInvalidPublicKey},
		{"unknown type", Credential{Identifier: "a", Type: "paper", PublicKey: pk}, ErrUnknownWalletType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCredential_VersionTag(t *testing.T) {
	assert.Equal(t, "v4r2", Credential{Version: V4R2}.VersionTag())
}

func TestNewContract(t *testing.T) {
	key, err := KeyFromMnemonic(testWords())
	require.NoError(t, err)
	pub, err := Credential{PublicKey: hexPub(t, key)}.PubKey()
	require.NoError(t, err)

	t.Run("address is the state init hash", func(t *testing.T) {
		c, err := NewContract(pub, V4R2, chain.Mainnet)
		require.NoError(t, err)
		assert.Equal(t, int32(0), c.Address.Workchain())
		assert.Equal(t, c.StateInit.Hash(), c.Address.Data())
		assert.True(t, strings.HasPrefix(c.RawAddress(), "0:"))
	})

	t.Run("raw address form", func(t *testing.T) {
		c, err := NewContract(pub, V4R2, chain.Testnet)
		require.NoError(t, err)
		assert.Regexp(t, `^0:[0-9a-f]{64}$`, c.RawAddress())
		assert.Equal(t, "0:"+hex.EncodeToString(c.StateInit.Hash()), c.RawAddress())
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := NewContract(pub, V4R2, chain.Mainnet)
		require.NoError(t, err)
		b, err := NewContract(pub, V4R2, chain.Mainnet)
		require.NoError(t, err)
		assert.Equal(t, a.RawAddress(), b.RawAddress())
	})

	t.Run("versions differ", func(t *testing.T) {
		a, err := NewContract(pub, V4R2, chain.Mainnet)
		require.NoError(t, err)
		b, err := NewContract(pub, V3R2, chain.Mainnet)
		require.NoError(t, err)
		assert.NotEqual(t, a.RawAddress(), b.RawAddress())
	})

	t.Run("unsupported version", func(t *testing.T) {
		_, err := NewContract(pub, "v9", chain.Mainnet)
		require.Error(t, err)
	})

	t.Run("bad key", func(t *testing.T) {
		_, err := NewContract([]byte{1, 2}, V4R2, chain.Mainnet)
		assert.ErrorIs(t, err, ErrInvalidPublicKey)
	})
}
