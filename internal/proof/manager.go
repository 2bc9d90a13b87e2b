// Package proof obtains and caches the tonapi bearer token that proves
// ownership of a wallet address through a TON Connect ton_proof.
package proof

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/redact"
	"github.com/tonsigner/tonsigner/internal/securestore"
	"github.com/tonsigner/tonsigner/internal/tonapi"
	"github.com/tonsigner/tonsigner/internal/wallet"
)

var log = logger.GetOrCreate("proof")

const tokenKeyPrefix = "proof-"

// API is the tonapi surface used for proofs.
type API interface {
	GetTonConnectPayload(ctx context.Context) (string, error)
	TonConnectProof(ctx context.Context, proof tonapi.SignedProof) (string, error)
}

// Store persists tokens.
type Store interface {
	SetItem(ctx context.Context, key, value string) error
	GetItem(ctx context.Context, key string) (string, error)
	DeleteItem(ctx context.Context, key string) error
}

// TokenKey is the secure storage key of a wallet's token.
func TokenKey(identifier string) string {
	return tokenKeyPrefix + identifier
}

// Manager holds the proof token of one wallet.
type Manager struct {
	identifier string
	network    chain.Network
	api        API
	store      Store
	now        func() time.Time

	mu    sync.RWMutex
	token string
}

// NewManager creates a manager for the wallet identifier.
func NewManager(identifier string, network chain.Network, api API, store Store) *Manager {
	return &Manager{
		identifier: identifier,
		network:    network,
		api:        api,
		store:      store,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for proof timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Token returns the cached token, or "" when none is set.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// ObtainProof runs the full round trip with a local key. Any failure is
// logged and reported as no token.
func (m *Manager) ObtainProof(ctx context.Context, priv ed25519.PrivateKey) (string, bool) {
	if len(priv) != ed25519.PrivateKeySize {
		log.Warn("obtain proof: invalid private key", "wallet", m.identifier)
		return "", false
	}
	unsigned, ok := m.CreateUnsignedProof(ctx, priv.Public().(ed25519.PublicKey))
	if !ok {
		return "", false
	}
	signed, err := SignProof(unsigned, priv)
	if err != nil {
		log.Warn("obtain proof: sign", "wallet", m.identifier, "error", err)
		return "", false
	}
	return m.AcceptSignedProof(ctx, signed)
}

// CreateUnsignedProof fetches a server payload and prepares the proof for
// external signing (hardware wallets).
func (m *Manager) CreateUnsignedProof(ctx context.Context, pub ed25519.PublicKey) (*UnsignedProof, bool) {
	unsigned, err := m.createUnsignedProof(ctx, pub)
	if err != nil {
		log.Warn("create unsigned proof", "wallet", m.identifier, "error", err)
		return nil, false
	}
	return unsigned, true
}

func (m *Manager) createUnsignedProof(ctx context.Context, pub ed25519.PublicKey) (*UnsignedProof, error) {
	contract, err := wallet.NewContract(pub, wallet.V4R2, m.network)
	if err != nil {
		return nil, err
	}
	stateInit := base64.StdEncoding.EncodeToString(contract.StateInit.ToBOCWithFlags(false))

	payload, err := m.api.GetTonConnectPayload(ctx)
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}
	return NewUnsignedProof(contract.RawAddress(), m.now().Unix(), payload, stateInit)
}

// AcceptSignedProof submits an externally signed proof and stores the token.
func (m *Manager) AcceptSignedProof(ctx context.Context, signed tonapi.SignedProof) (string, bool) {
	token, err := m.api.TonConnectProof(ctx, signed)
	if err != nil {
		log.Warn("submit proof", "wallet", m.identifier, "error", err)
		return "", false
	}
	if err := m.store.SetItem(ctx, TokenKey(m.identifier), token); err != nil {
		log.Warn("persist proof token", "wallet", m.identifier, "error", err)
		return "", false
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	log.Debug("proof token obtained", "wallet", m.identifier, "token", redact.Short(token))
	return token, true
}

// Rehydrate loads the persisted token into memory.
func (m *Manager) Rehydrate(ctx context.Context) {
	token, err := m.store.GetItem(ctx, TokenKey(m.identifier))
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Warn("rehydrate proof token", "wallet", m.identifier, "error", err)
		}
		token = ""
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Destroy forgets the token in memory and in storage.
func (m *Manager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := m.store.DeleteItem(ctx, TokenKey(m.identifier)); err != nil {
		return fmt.Errorf("delete proof token: %w", err)
	}
	return nil
}
