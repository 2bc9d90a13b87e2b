package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/securestore"
)

const (
	walletKeyPrefix = "wallet-"
	vaultKeyPrefix  = "vault-"
	minPasscodeLen  = 4
)

var log = logger.GetOrCreate("wallet")

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrVaultLocked    = errors.New("vault is locked")
	ErrNoVault        = errors.New("wallet has no mnemonic vault")
	ErrWeakPasscode   = errors.New("passcode must be at least 4 characters")
)

// SecureStore is the subset of securestore.Store the manager needs.
type SecureStore interface {
	SetItem(ctx context.Context, key, value string) error
	GetItem(ctx context.Context, key string) (string, error)
	DeleteItem(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Manager keeps wallet records and passcode-sealed mnemonic vaults.
type Manager struct {
	store SecureStore
	kdf   securestore.KDFParams
	now   func() time.Time
}

// NewManager creates a manager over store using kdf for new vaults.
func NewManager(store SecureStore, kdf securestore.KDFParams) *Manager {
	return &Manager{store: store, kdf: kdf, now: time.Now}
}

// CreateMnemonic generates a new regular wallet and returns its words for backup.
func (m *Manager) CreateMnemonic(ctx context.Context, name, passcode string, version Version, network chain.Network) (Credential, []string, error) {
	words, err := NewMnemonic()
	if err != nil {
		return Credential{}, nil, err
	}
	cred, err := m.ImportMnemonic(ctx, name, words, passcode, version, network)
	if err != nil {
		return Credential{}, nil, err
	}
	return cred, words, nil
}

// ImportMnemonic seals words under passcode and records a regular wallet.
func (m *Manager) ImportMnemonic(ctx context.Context, name string, words []string, passcode string, version Version, network chain.Network) (Credential, error) {
	if len(passcode) < minPasscodeLen {
		return Credential{}, ErrWeakPasscode
	}
	key, err := KeyFromMnemonic(words)
	if err != nil {
		return Credential{}, err
	}

	cred := Credential{
		Identifier: uuid.NewString(),
		Name:       name,
		Type:       TypeRegular,
		PublicKey:  hex.EncodeToString(key.Public().(ed25519.PublicKey)),
		Version:    version,
		Network:    network,
		CreatedAt:  m.now().Unix(),
	}

	env, err := securestore.SealWithPasscode(passcode, []byte(strings.Join(words, " ")), vaultAAD(cred.Identifier), m.kdf)
	if err != nil {
		return Credential{}, fmt.Errorf("seal vault: %w", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return Credential{}, fmt.Errorf("marshal vault: %w", err)
	}
	if err := m.store.SetItem(ctx, vaultKeyPrefix+cred.Identifier, string(raw)); err != nil {
		return Credential{}, err
	}
	if _, err := m.AddCredential(ctx, cred); err != nil {
		_ = m.store.DeleteItem(ctx, vaultKeyPrefix+cred.Identifier)
		return Credential{}, err
	}

	log.Info("wallet imported", "id", cred.Identifier, "version", cred.Version)
	return cred, nil
}

// AddCredential records a wallet whose key lives elsewhere (Ledger,
// Keystone, Signer) or a regular wallet whose vault was already stored.
func (m *Manager) AddCredential(ctx context.Context, cred Credential) (Credential, error) {
	if cred.Identifier == "" {
		cred.Identifier = uuid.NewString()
	}
	if cred.CreatedAt == 0 {
		cred.CreatedAt = m.now().Unix()
	}
	if err := cred.Validate(); err != nil {
		return Credential{}, err
	}

	raw, err := json.Marshal(cred)
	if err != nil {
		return Credential{}, fmt.Errorf("marshal wallet: %w", err)
	}
	if err := m.store.SetItem(ctx, walletKeyPrefix+cred.Identifier, string(raw)); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// Get returns the wallet record for id.
func (m *Manager) Get(ctx context.Context, id string) (Credential, error) {
	raw, err := m.store.GetItem(ctx, walletKeyPrefix+id)
	if errors.Is(err, securestore.ErrNotFound) {
		return Credential{}, ErrWalletNotFound
	}
	if err != nil {
		return Credential{}, err
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return Credential{}, fmt.Errorf("failed to parse wallet %s: %w", id, err)
	}
	return cred, nil
}

// List returns all wallet records.
func (m *Manager) List(ctx context.Context) ([]Credential, error) {
	keys, err := m.store.Keys(ctx, walletKeyPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]Credential, 0, len(keys))
	for _, k := range keys {
		cred, err := m.Get(ctx, strings.TrimPrefix(k, walletKeyPrefix))
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, nil
}

// Remove deletes the wallet record and its vault.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	if err := m.store.DeleteItem(ctx, vaultKeyPrefix+id); err != nil {
		return err
	}
	return m.store.DeleteItem(ctx, walletKeyPrefix+id)
}

// Unlock opens the vault of a regular wallet.
func (m *Manager) Unlock(ctx context.Context, id, passcode string) (*UnlockedVault, error) {
	raw, err := m.store.GetItem(ctx, vaultKeyPrefix+id)
	if errors.Is(err, securestore.ErrNotFound) {
		return nil, ErrNoVault
	}
	if err != nil {
		return nil, err
	}

	var env securestore.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}

	plain, err := securestore.OpenWithPasscode(passcode, &env, vaultAAD(id))
	if err != nil {
		return nil, err
	}

	words := strings.Fields(string(plain))
	key, err := KeyFromMnemonic(words)
	if err != nil {
		return nil, err
	}
	return &UnlockedVault{identifier: id, mnemonic: words, key: key}, nil
}

func vaultAAD(id string) []byte {
	return []byte("tonsigner:vault:" + id)
}

// UnlockedVault holds decrypted key material for one wallet.
type UnlockedVault struct {
	// mu protects key from concurrent access. Prevents signing operations from
	// racing with Lock() which zeros the key material.
	mu         sync.RWMutex
	identifier string
	mnemonic   []string
	key        ed25519.PrivateKey // nil when locked
}

// Identifier returns the wallet this vault belongs to.
func (v *UnlockedVault) Identifier() string {
	return v.identifier
}

// Mnemonic returns a copy of the words.
func (v *UnlockedVault) Mnemonic() ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}
	return append([]string(nil), v.mnemonic...), nil
}

// KeyPair returns a copy of the private key; the public half is key.Public().
func (v *UnlockedVault) KeyPair() (ed25519.PrivateKey, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}
	return append(ed25519.PrivateKey(nil), v.key...), nil
}

// Sign signs hash with the vault key.
func (v *UnlockedVault) Sign(hash []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}
	return ed25519.Sign(v.key, hash), nil
}

// Lock zeros key material. Safe to call multiple times. After Lock(), all
// operations return ErrVaultLocked.
func (v *UnlockedVault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		for i := range v.key {
			v.key[i] = 0
		}
		v.key = nil
	}
	v.mnemonic = nil
}
