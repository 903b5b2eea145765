// Package commit implements the content encryption and key-commitment codec
// used by the escrow flow. A seller encrypts content under a fresh key and
// publishes keccak256(key || salt) on the ledger; the buyer later recomputes
// the same commitment from the revealed key before trusting it.
package commit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// KeySize is the content encryption key length in bytes.
	KeySize = 32
	// SaltSize is the commitment salt length in bytes.
	SaltSize = 32
	// CommitmentSize is the keccak256 digest length in bytes.
	CommitmentSize = 32

	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrIntegrity is returned when the authenticated cipher rejects the
	// ciphertext. It is fatal for the current operation and never retried.
	ErrIntegrity = errors.New("integrity check failed: ciphertext corrupted or wrong key")
	// ErrCommitmentMismatch is returned when a recomputed commitment does not
	// equal the expected one. It signals corruption or malicious behavior and
	// must be surfaced distinctly from network errors.
	ErrCommitmentMismatch = errors.New("key commitment mismatch")
)

// Commitment is the keccak256 hash binding a (key, salt) pair without
// revealing it.
type Commitment [CommitmentSize]byte

// Compute derives the commitment for key and salt.
func Compute(key, salt []byte) Commitment {
	h := sha3.NewLegacyKeccak256()
	h.Write(key)
	h.Write(salt)

	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// Hex renders the commitment as a 0x-prefixed lowercase hex string, the only
// form ever published on the ledger.
func (c Commitment) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// Equal compares two commitments in constant time. On-chain values are
// attacker influenced, so the comparison must not leak timing.
func (c Commitment) Equal(other Commitment) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// ParseHex parses a commitment from hex. The 0x prefix is optional and the
// input is case-normalized before decoding.
func ParseHex(s string) (Commitment, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Commitment{}, fmt.Errorf("invalid commitment hex: %w", err)
	}
	if len(raw) != CommitmentSize {
		return Commitment{}, fmt.Errorf("invalid commitment length: got %d bytes, expected %d", len(raw), CommitmentSize)
	}

	var c Commitment
	copy(c[:], raw)
	return c, nil
}

// EncryptedPayload is the sealed content produced once per sell operation.
type EncryptedPayload struct {
	Ciphertext []byte
	Nonce      []byte
	AuthTag    []byte
}

// Marshal flattens the payload for blob upload: nonce || tag || ciphertext.
func (p EncryptedPayload) Marshal() []byte {
	out := make([]byte, 0, len(p.Nonce)+len(p.AuthTag)+len(p.Ciphertext))
	out = append(out, p.Nonce...)
	out = append(out, p.AuthTag...)
	out = append(out, p.Ciphertext...)
	return out
}

// UnmarshalPayload is the inverse of Marshal.
func UnmarshalPayload(raw []byte) (EncryptedPayload, error) {
	if len(raw) < nonceSize+tagSize {
		return EncryptedPayload{}, fmt.Errorf("encrypted payload too short: %d bytes", len(raw))
	}
	return EncryptedPayload{
		Nonce:      append([]byte(nil), raw[:nonceSize]...),
		AuthTag:    append([]byte(nil), raw[nonceSize:nonceSize+tagSize]...),
		Ciphertext: append([]byte(nil), raw[nonceSize+tagSize:]...),
	}, nil
}

// SealResult holds the secret material and the publishable commitment of one
// sell operation. Key and Salt must only ever reach the caller's secret
// store; they are never logged.
type SealResult struct {
	Key        []byte
	Salt       []byte
	Payload    EncryptedPayload
	Commitment Commitment
}

// Encrypt seals plaintext under a fresh random key with AES-256-GCM and
// computes the key commitment for publication.
func Encrypt(plaintext []byte) (*SealResult, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate content key: %w", err)
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate commitment salt: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return &SealResult{
		Key:  key,
		Salt: salt,
		Payload: EncryptedPayload{
			Ciphertext: ct,
			Nonce:      nonce,
			AuthTag:    tag,
		},
		Commitment: Compute(key, salt),
	}, nil
}

// Decrypt opens the payload with key. It returns ErrIntegrity if the
// authentication tag does not verify; no partial plaintext is ever returned.
func Decrypt(payload EncryptedPayload, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid content key length: got %d bytes, expected %d", len(key), KeySize)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(payload.Nonce) != nonceSize {
		return nil, fmt.Errorf("invalid nonce length: got %d bytes, expected %d", len(payload.Nonce), nonceSize)
	}

	sealed := append(append([]byte(nil), payload.Ciphertext...), payload.AuthTag...)
	plaintext, err := aead.Open(nil, payload.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// DecryptVerified recomputes the commitment from key and salt, compares it to
// expected in constant time and only then decrypts. Both checks are mandatory
// before any plaintext reaches the caller.
func DecryptVerified(payload EncryptedPayload, key, salt []byte, expected Commitment) ([]byte, error) {
	if got := Compute(key, salt); !got.Equal(expected) {
		return nil, fmt.Errorf("%w: expected %s, recomputed %s", ErrCommitmentMismatch, expected.Hex(), got.Hex())
	}
	return Decrypt(payload, key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
