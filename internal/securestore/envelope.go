package securestore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidPasscodeOrCorrupt is returned when an envelope fails to open.
// Kept generic to avoid leaking which part was wrong.
var ErrInvalidPasscodeOrCorrupt = errors.New("invalid passcode or corrupted envelope")

// KDFParams are the Argon2id settings stored alongside each envelope.
type KDFParams struct {
	Time    uint32 `json:"argon_time"`
	Memory  uint32 `json:"argon_memory_kib"`
	Threads uint8  `json:"argon_threads"`
}

// DefaultKDF is tuned for a local passcode-gated vault.
var DefaultKDF = KDFParams{
	Time:    2,
	Memory:  64 * 1024, // 64 MiB in KiB
	Threads: 1,
}

// Envelope is a passcode-sealed blob, serialized as JSON.
type Envelope struct {
	Version  int       `json:"version"`
	KDF      KDFParams `json:"kdf"`
	SaltB64  string    `json:"salt_b64"`
	NonceB64 string    `json:"nonce_b64"`
	CTB64    string    `json:"ct_b64"`
}

// SealWithPasscode encrypts plaintext under a key derived from passcode.
func SealWithPasscode(passcode string, plaintext, aad []byte, params KDFParams) (*Envelope, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passcode, salt, params))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return &Envelope{
		Version:  1,
		KDF:      params,
		SaltB64:  base64.StdEncoding.EncodeToString(salt),
		NonceB64: base64.StdEncoding.EncodeToString(nonce),
		CTB64:    base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, aad)),
	}, nil
}

// OpenWithPasscode decrypts env. aad must match what was used to seal.
func OpenWithPasscode(passcode string, env *Envelope, aad []byte) ([]byte, error) {
	if env == nil || env.Version != 1 {
		return nil, ErrInvalidPasscodeOrCorrupt
	}

	salt, err := base64.StdEncoding.DecodeString(env.SaltB64)
	if err != nil {
		return nil, ErrInvalidPasscodeOrCorrupt
	}
	nonce, err := base64.StdEncoding.DecodeString(env.NonceB64)
	if err != nil {
		return nil, ErrInvalidPasscodeOrCorrupt
	}
	ct, err := base64.StdEncoding.DecodeString(env.CTB64)
	if err != nil {
		return nil, ErrInvalidPasscodeOrCorrupt
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passcode, salt, env.KDF))
	if err != nil || len(nonce) != aead.NonceSize() {
		return nil, ErrInvalidPasscodeOrCorrupt
	}

	plain, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrInvalidPasscodeOrCorrupt
	}
	return plain, nil
}

func deriveKey(passcode string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passcode), salt, p.Time, p.Memory, p.Threads, chacha20poly1305.KeySize)
}
