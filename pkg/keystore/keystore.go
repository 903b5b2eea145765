// Package keystore encrypts a long-lived identity at rest under a user
// password. The document shape is the widely audited web3 keystore layout
// (memory-hard KDF, stream cipher, keyed-hash MAC) rather than anything
// invented here; the algorithm identifiers are a strict allow-list so a
// tampered document can never downgrade the crypto.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

const (
	// Version is the only keystore document version this implementation
	// reads or writes. Unknown versions are rejected outright.
	Version = 1
	// Type marks the document as a fairdrop identity keystore.
	Type = "fairdrop"

	cipherName = "aes-128-ctr"
	kdfName    = "scrypt"

	// Fixed scrypt parameters. Create and Parse must agree on these or
	// parsing fails.
	scryptN     = 8192
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32

	saltSize = 32
	ivSize   = 16

	// MinPasswordLength is a local usability guard, not a security boundary.
	// Strength beyond length is deliberately not enforced.
	MinPasswordLength = 8
)

var (
	// ErrAuthentication is returned when the MAC does not verify. The caller
	// cannot distinguish a wrong password from a corrupted document, and the
	// message says so.
	ErrAuthentication = errors.New("incorrect password or corrupted keystore")
	// ErrUnsupportedVersion is returned for any document version other than 1.
	ErrUnsupportedVersion = errors.New("unsupported keystore version")
	// ErrUnsupportedKDF is returned when the KDF identifier or its parameters
	// differ from the fixed scrypt configuration.
	ErrUnsupportedKDF = errors.New("unsupported keystore kdf")
	// ErrUnsupportedCipher is returned for any cipher other than aes-128-ctr.
	ErrUnsupportedCipher = errors.New("unsupported keystore cipher")
	// ErrPasswordTooShort is returned by ValidatePassword.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Payload is the decrypted identity. It exists only in memory while the
// keystore is unlocked and must never be persisted in plaintext.
type Payload struct {
	Subdomain  string `json:"subdomain"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	Created    int64  `json:"created"`
}

// Document is the versioned, self-describing keystore file.
type Document struct {
	Version int        `json:"version"`
	Type    string     `json:"type"`
	Address string     `json:"address"`
	Crypto  CryptoSpec `json:"crypto"`
}

// CryptoSpec describes how the payload was encrypted.
type CryptoSpec struct {
	Cipher       string       `json:"cipher"`
	Ciphertext   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

// ValidatePassword rejects passwords under MinPasswordLength characters.
// It returns nil when the password is acceptable.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Create encrypts payload under password and returns the keystore document.
// address identifies the account the document belongs to.
func Create(payload Payload, password, address string) (*Document, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize keystore payload: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate kdf salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate cipher iv: %w", err)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt key derivation failed: %w", err)
	}

	ciphertext, err := ctrCrypt(derivedKey[:16], iv, plaintext)
	if err != nil {
		return nil, err
	}

	return &Document{
		Version: Version,
		Type:    Type,
		Address: address,
		Crypto: CryptoSpec{
			Cipher:     cipherName,
			Ciphertext: hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{
				IV: hex.EncodeToString(iv),
			},
			KDF: kdfName,
			KDFParams: KDFParams{
				DKLen: scryptDKLen,
				N:     scryptN,
				R:     scryptR,
				P:     scryptP,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(computeMAC(derivedKey, ciphertext)),
		},
	}, nil
}

// Parse verifies and decrypts a keystore document. The algorithm identifiers
// are checked first, then the MAC in constant time, and only afterwards is
// the ciphertext touched.
func Parse(doc *Document, password string) (*Payload, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.Crypto.KDF != kdfName {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, doc.Crypto.KDF)
	}
	p := doc.Crypto.KDFParams
	if p.DKLen != scryptDKLen || p.N != scryptN || p.R != scryptR || p.P != scryptP {
		return nil, fmt.Errorf("%w: parameters n=%d r=%d p=%d dklen=%d", ErrUnsupportedKDF, p.N, p.R, p.P, p.DKLen)
	}
	if doc.Crypto.Cipher != cipherName {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCipher, doc.Crypto.Cipher)
	}

	salt, err := hex.DecodeString(doc.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid kdf salt: %w", err)
	}
	iv, err := hex.DecodeString(doc.Crypto.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid cipher iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(doc.Crypto.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(doc.Crypto.MAC)
	if err != nil {
		return nil, fmt.Errorf("invalid mac: %w", err)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt key derivation failed: %w", err)
	}

	if subtle.ConstantTimeCompare(computeMAC(derivedKey, ciphertext), mac) != 1 {
		return nil, ErrAuthentication
	}

	plaintext, err := ctrCrypt(derivedKey[:16], iv, ciphertext)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse keystore payload: %w", err)
	}
	return &payload, nil
}

// Marshal serializes the document to JSON for the secret store.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize keystore document: %w", err)
	}
	return data, nil
}

// Unmarshal parses a stored keystore document without decrypting it.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keystore document: %w", err)
	}
	return &doc, nil
}

// computeMAC returns keccak256(derivedKey[16:32] || ciphertext).
func computeMAC(derivedKey, ciphertext []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(derivedKey[16:32])
	h.Write(ciphertext)
	return h.Sum(nil)
}

// ctrCrypt runs AES-128-CTR over data; encryption and decryption are the
// same operation.
func ctrCrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}
