package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/securestore"
	tonwallet "github.com/xssnick/tonutils-go/ton/wallet"
)

var testKDF = securestore.KDFParams{Time: 1, Memory: 1024, Threads: 1}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := securestore.OpenDSN(":memory:", bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(store, testKDF)
}

var fixtureWords = tonwallet.NewSeed()

func testWords() []string {
	return append([]string(nil), fixtureWords...)
}

func TestManager_ImportMnemonic(t *testing.T) {
	ctx := context.Background()

	t.Run("records a regular wallet", func(t *testing.T) {
		m := newTestManager(t)
		cred, err := m.ImportMnemonic(ctx, "main", testWords(), "1234", V4R2, chain.Mainnet)
		require.NoError(t, err)

		assert.Equal(t, TypeRegular, cred.Type)
		assert.NotEmpty(t, cred.Identifier)
		assert.Len(t, cred.PublicKey, 64)

		key, err := KeyFromMnemonic(testWords())
		require.NoError(t, err)
		pub, err := cred.PubKey()
		require.NoError(t, err)
		assert.Equal(t, key.Public().(ed25519.PublicKey), pub)
	})

	t.Run("rejects short passcode", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.ImportMnemonic(ctx, "main", testWords(), "12", V4R2, chain.Mainnet)
		assert.ErrorIs(t, err, ErrWeakPasscode)
	})

	t.Run("rejects wrong word count", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.ImportMnemonic(ctx, "main", testWords()[:12], "1234", V4R2, chain.Mainnet)
		assert.ErrorIs(t, err, ErrInvalidMnemonic)
	})

	t.Run("rejects unknown words", func(t *testing.T) {
		m := newTestManager(t)
		junk := strings.Fields(strings.Repeat("notaword ", 24))
		_, err := m.ImportMnemonic(ctx, "main", junk, "1234", V4R2, chain.Mainnet)
		assert.ErrorIs(t, err, ErrInvalidMnemonic)

		wallets, err := m.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, wallets)
	})
}

func TestManager_Unlock(t *testing.T) {
	ctx := context.Background()

	t.Run("opens with the right passcode", func(t *testing.T) {
		m := newTestManager(t)
		cred, err := m.ImportMnemonic(ctx, "main", testWords(), "1234", V4R2, chain.Mainnet)
		require.NoError(t, err)

		vault, err := m.Unlock(ctx, cred.Identifier, "1234")
		require.NoError(t, err)
		assert.Equal(t, cred.Identifier, vault.Identifier())

		words, err := vault.Mnemonic()
		require.NoError(t, err)
		assert.Equal(t, testWords(), words)
	})

	t.Run("wrong passcode fails", func(t *testing.T) {
		m := newTestManager(t)
		cred, err := m.ImportMnemonic(ctx, "main", testWords(), "1234", V4R2, chain.Mainnet)
		require.NoError(t, err)

		_, err = m.Unlock(ctx, cred.Identifier, "9999")
		assert.ErrorIs(t, err, securestore.ErrInvalidPasscodeOrCorrupt)
	})

	t.Run("hardware wallet has no vault", func(t *testing.T) {
		m := newTestManager(t)
		cred := Credential{
			Identifier: "ks-1",
			Type:       TypeKeystone,
			PublicKey:  strings.Repeat("ab", 32),
			Version:    V4R2,
			Keystone:   &KeystoneMeta{XFP: "f23f9fd2", Path: "m/44'/607'/0'"},
		}
		_, err := m.AddCredential(ctx, cred)
		require.NoError(t, err)

		_, err = m.Unlock(ctx, "ks-1", "1234")
		assert.ErrorIs(t, err, ErrNoVault)
	})
}

func TestManager_ListAndRemove(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	regular, err := m.ImportMnemonic(ctx, "main", testWords(), "1234", V4R2, chain.Mainnet)
	require.NoError(t, err)
	signerCred, err := m.AddCredential(ctx, Credential{
		Type:      TypeSigner,
		PublicKey: strings.Repeat("cd", 32),
		Version:   V4R2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, signerCred.Identifier)
	assert.NotZero(t, signerCred.CreatedAt)

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, m.Remove(ctx, regular.Identifier))

	_, err = m.Get(ctx, regular.Identifier)
	assert.ErrorIs(t, err, ErrWalletNotFound)
	_, err = m.Unlock(ctx, regular.Identifier, "1234")
	assert.ErrorIs(t, err, ErrNoVault)

	assert.ErrorIs(t, m.Remove(ctx, "missing"), ErrWalletNotFound)
}

func TestManager_AddCredentialValidates(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddCredential(context.Background(), Credential{
		Identifier: "ledger-1",
		Type:       TypeLedger,
		PublicKey:  strings.Repeat("ab", 32),
	})
	assert.ErrorIs(t, err, ErrMissingMetadata)
}

func TestUnlockedVault_Lock(t *testing.T) {
	key, err := KeyFromMnemonic(testWords())
	require.NoError(t, err)
	vault := &UnlockedVault{identifier: "w", mnemonic: testWords(), key: key}

	t.Run("signs before lock", func(t *testing.T) {
		sig, err := vault.Sign([]byte("hash"))
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), []byte("hash"), sig))
	})

	t.Run("refuses after lock", func(t *testing.T) {
		vault.Lock()
		vault.Lock()

		_, err := vault.Sign([]byte("hash"))
		assert.ErrorIs(t, err, ErrVaultLocked)
		_, err = vault.KeyPair()
		assert.ErrorIs(t, err, ErrVaultLocked)
		_, err = vault.Mnemonic()
		assert.ErrorIs(t, err, ErrVaultLocked)
	})
}
