package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cosmos/go-bip39"
	"github.com/xdg-go/pbkdf2"
	tonwallet "github.com/xssnick/tonutils-go/ton/wallet"
)

const (
	mnemonicWords   = 24
	seedSalt        = "TON default seed"
	seedIterations  = 100000
	basicSalt       = "TON seed version"
	// basic phrases have a zero first byte after this many rounds
	basicIterations = seedIterations / 256
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	wordsOnce sync.Once
	wordSet   map[string]struct{}
)

// NewMnemonic generates a fresh 24-word TON mnemonic without a password.
func NewMnemonic() ([]string, error) {
	words := tonwallet.NewSeed()
	if err := ValidateMnemonic(words); err != nil {
		return nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	return words, nil
}

// NormalizeMnemonic lower-cases and splits a phrase, checking the word count.
func NormalizeMnemonic(phrase string) ([]string, error) {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) != mnemonicWords {
		return nil, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidMnemonic, mnemonicWords, len(words))
	}
	return words, nil
}

// ValidateMnemonic checks the word count, the wordlist and the TON basic
// seed marker that every TON wallet app verifies on import.
func ValidateMnemonic(words []string) error {
	if len(words) != mnemonicWords {
		return fmt.Errorf("%w: expected %d words, got %d", ErrInvalidMnemonic, mnemonicWords, len(words))
	}
	for i, w := range words {
		if !knownWord(w) {
			return fmt.Errorf("%w: unknown word %d %q", ErrInvalidMnemonic, i+1, w)
		}
	}

	marker := pbkdf2.Key(mnemonicEntropy(words), []byte(basicSalt), basicIterations, 1, sha512.New)
	if marker[0] != 0 {
		return fmt.Errorf("%w: not a TON seed phrase", ErrInvalidMnemonic)
	}
	return nil
}

// KeyFromMnemonic derives the ed25519 key the way TON wallets do:
// HMAC-SHA512 keyed by the phrase, then PBKDF2-SHA512 into a 32-byte seed.
func KeyFromMnemonic(words []string) (ed25519.PrivateKey, error) {
	if err := ValidateMnemonic(words); err != nil {
		return nil, err
	}

	seed := pbkdf2.Key(mnemonicEntropy(words), []byte(seedSalt), seedIterations, ed25519.SeedSize, sha512.New)
	return ed25519.NewKeyFromSeed(seed), nil
}

func mnemonicEntropy(words []string) []byte {
	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	return mac.Sum(nil)
}

func knownWord(w string) bool {
	wordsOnce.Do(func() {
		list := bip39.WordList
		wordSet = make(map[string]struct{}, len(list))
		for _, word := range list {
			wordSet[word] = struct{}{}
		}
	})
	_, ok := wordSet[w]
	return ok
}
