// Package keywrap wraps a content key to one specific recipient. The reveal
// is broadcast on a public ledger, so the key is encrypted under an
// ephemeral X25519 ECDH shared secret: only the holder of the matching
// private key can recover it, no matter who watches the chain.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// PublicKeySize is the X25519 public key length in bytes.
	PublicKeySize = 32
	// PrivateKeySize is the X25519 private key length in bytes.
	PrivateKeySize = 32

	nonceSize = 12

	// SecretSize is the wrapped plaintext length: content key (32) followed
	// by commitment salt (32) so the recipient can recompute the commitment
	// on their own.
	SecretSize = 64
)

// kdfInfo gives the HKDF output domain separation from any other use of the
// same shared secret.
var kdfInfo = []byte("fairtrade/keywrap/v1")

// ErrIntegrity is returned when unwrapping fails authentication. It means
// "this reveal is not addressed to me or is corrupted", never a crash.
var ErrIntegrity = errors.New("key unwrap failed: wrong recipient or corrupted data")

// WrappedKey is a content secret encrypted to a single recipient. It is
// published once and consumed once.
type WrappedKey struct {
	EphemeralPublicKey []byte
	Nonce              []byte
	Ciphertext         []byte
}

// KeyPair is an X25519 identity used to receive wrapped reveals.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// GenerateKeyPair creates a fresh X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate X25519 key: %w", err)
	}
	return &KeyPair{
		PrivateKey: priv.Bytes(),
		PublicKey:  priv.PublicKey().Bytes(),
	}, nil
}

// PublicKeyFromPrivate derives the X25519 public key for a private key.
func PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	priv, err := ecdh.X25519().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return priv.PublicKey().Bytes(), nil
}

// Wrap encrypts secret to the recipient's public key. It generates an
// ephemeral key pair, runs ECDH against recipientPublicKey, derives a
// symmetric key through HKDF (never the raw shared secret) and seals the
// secret with AES-256-GCM.
func Wrap(secret, recipientPublicKey []byte) (*WrappedKey, error) {
	ephemeral, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	recipient, err := ecdh.X25519().NewPublicKey(recipientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient public key: %w", err)
	}

	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}

	ephemeralPub := ephemeral.PublicKey().Bytes()
	wrapKey, err := deriveWrapKey(shared, ephemeralPub)
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(wrapKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &WrappedKey{
		EphemeralPublicKey: ephemeralPub,
		Nonce:              nonce,
		Ciphertext:         aead.Seal(nil, nonce, secret, nil),
	}, nil
}

// Unwrap recomputes the shared secret with the recipient's private key and
// decrypts. A tag mismatch returns ErrIntegrity.
func Unwrap(wrapped *WrappedKey, recipientPrivateKey []byte) ([]byte, error) {
	priv, err := ecdh.X25519().NewPrivateKey(recipientPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	ephemeralPub, err := ecdh.X25519().NewPublicKey(wrapped.EphemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral public key: %w", err)
	}

	shared, err := priv.ECDH(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}

	wrapKey, err := deriveWrapKey(shared, wrapped.EphemeralPublicKey)
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(wrapKey)
	if err != nil {
		return nil, err
	}
	if len(wrapped.Nonce) != nonceSize {
		return nil, fmt.Errorf("invalid nonce length: got %d bytes, expected %d", len(wrapped.Nonce), nonceSize)
	}

	secret, err := aead.Open(nil, wrapped.Nonce, wrapped.Ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return secret, nil
}

// Marshal frames the wrapped key for ledger publication:
// [epk_len(2)] [epk] [nonce_len(1)] [nonce] [ciphertext].
func (w *WrappedKey) Marshal() []byte {
	out := make([]byte, 0, 3+len(w.EphemeralPublicKey)+len(w.Nonce)+len(w.Ciphertext))

	var epkLen [2]byte
	binary.BigEndian.PutUint16(epkLen[:], uint16(len(w.EphemeralPublicKey)))
	out = append(out, epkLen[:]...)
	out = append(out, w.EphemeralPublicKey...)
	out = append(out, byte(len(w.Nonce)))
	out = append(out, w.Nonce...)
	out = append(out, w.Ciphertext...)
	return out
}

// Unmarshal parses a framed wrapped key.
func Unmarshal(data []byte) (*WrappedKey, error) {
	if len(data) < 3 {
		return nil, errors.New("wrapped key too short")
	}

	offset := 0
	epkLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if offset+epkLen > len(data) {
		return nil, errors.New("invalid ephemeral public key length")
	}
	epk := append([]byte(nil), data[offset:offset+epkLen]...)
	offset += epkLen

	if offset >= len(data) {
		return nil, errors.New("missing nonce length")
	}
	nonceLen := int(data[offset])
	offset++
	if offset+nonceLen > len(data) {
		return nil, errors.New("invalid nonce length")
	}
	nonce := append([]byte(nil), data[offset:offset+nonceLen]...)
	offset += nonceLen

	return &WrappedKey{
		EphemeralPublicKey: epk,
		Nonce:              nonce,
		Ciphertext:         append([]byte(nil), data[offset:]...),
	}, nil
}

// deriveWrapKey derives the AES key from the ECDH shared secret via
// HKDF-SHA256, with the ephemeral public key bound into the info string.
func deriveWrapKey(shared, ephemeralPublicKey []byte) ([]byte, error) {
	info := append(append([]byte(nil), kdfInfo...), ephemeralPublicKey...)
	r := hkdf.New(sha256.New, shared, nil, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("HKDF failed: %w", err)
	}
	return key, nil
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
