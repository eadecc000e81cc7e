package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// PhraseLength is the number of words produced for a 32-byte key.
const PhraseLength = 24

var (
	ErrInvalidPhrase = errors.New("invalid recovery phrase")
	ErrInvalidKey    = errors.New("invalid private key")
)

type PrivateKey [32]byte

// Phrase is the ordered word sequence encoding a private key.
type Phrase []string

func (p Phrase) String() string {
	return strings.Join(p, " ")
}

func (p Phrase) Len() int {
	return len(p)
}

func GenerateKey() (PrivateKey, error) {
	var key PrivateKey

	priv, err := crypto.GenerateKey()
	if err != nil {
		return key, fmt.Errorf("failed to generate key: %w", err)
	}

	b := crypto.FromECDSA(priv)
	copy(key[:], b)
	Zero(b)

	return key, nil
}

// ToPhrase derives the recovery phrase for key. It is deterministic and
// total: every 32-byte key maps to exactly one 24-word phrase.
func ToPhrase(key PrivateKey) Phrase {
	mnemonic, err := bip39.NewMnemonic(key[:])
	if err != nil {
		// 256 bits is always valid bip39 entropy.
		panic(fmt.Sprintf("wallet: bip39 rejected 32-byte entropy: %v", err))
	}
	return Phrase(strings.Fields(mnemonic))
}

// FromPhrase recovers the private key a phrase was derived from.
func FromPhrase(p Phrase) (PrivateKey, error) {
	var key PrivateKey

	if len(p) != PhraseLength {
		return key, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidPhrase, PhraseLength, len(p))
	}

	entropy, err := bip39.EntropyFromMnemonic(p.String())
	if err != nil {
		return key, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}
	if len(entropy) != len(key) {
		return key, fmt.Errorf("%w: unexpected entropy size %d", ErrInvalidPhrase, len(entropy))
	}

	copy(key[:], entropy)
	Zero(entropy)

	if _, err := crypto.ToECDSA(key[:]); err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// ParsePhrase normalises user input (spacing, case) and validates the checksum.
func ParsePhrase(s string) (Phrase, error) {
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPhrase)
	}
	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return nil, ErrInvalidPhrase
	}
	return Phrase(words), nil
}

// Address returns the checksummed safe address controlled by key.
func (k PrivateKey) Address() (string, error) {
	priv, err := crypto.ToECDSA(k[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return crypto.PubkeyToAddress(priv.PublicKey).Hex(), nil
}

// IsAddress reports whether s is a well-formed hex address literal.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}

func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
