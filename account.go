package fairtrade

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/fairdatasociety/fairtrade/pkg/keystore"
	"github.com/fairdatasociety/fairtrade/pkg/keywrap"
)

const keystoreKeyPrefix = "KEYSTORE_"

// Account is an unlocked identity. The private key lives only in memory for
// the session; locking is simply letting the Account go.
type Account struct {
	Subdomain  string
	Address    string
	PublicKey  []byte
	PrivateKey []byte
	Created    int64
}

// CreateAccount generates a fresh X25519 identity for subdomain, encrypts it
// under password and persists the keystore document in the secret store.
func (m *Market) CreateAccount(subdomain, password string) (*Account, error) {
	if err := keystore.ValidatePassword(password); err != nil {
		return nil, err
	}

	key := keystoreKeyPrefix + subdomain
	if _, exists, err := m.secrets.Get(key); err != nil {
		return nil, fmt.Errorf("failed to check for existing keystore: %w", err)
	} else if exists {
		return nil, fmt.Errorf("account %q already exists", subdomain)
	}

	pair, err := keywrap.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key pair: %w", err)
	}

	created := time.Now().Unix()
	address := deriveAddress(pair.PublicKey)

	doc, err := keystore.Create(keystore.Payload{
		Subdomain:  subdomain,
		PublicKey:  hex.EncodeToString(pair.PublicKey),
		PrivateKey: hex.EncodeToString(pair.PrivateKey),
		Created:    created,
	}, password, address)
	if err != nil {
		return nil, fmt.Errorf("failed to create keystore: %w", err)
	}

	raw, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	if err := m.secrets.Set(key, string(raw)); err != nil {
		return nil, fmt.Errorf("failed to persist keystore: %w", err)
	}

	log.Info("created account", "subdomain", subdomain, "address", address)
	return &Account{
		Subdomain:  subdomain,
		Address:    address,
		PublicKey:  pair.PublicKey,
		PrivateKey: pair.PrivateKey,
		Created:    created,
	}, nil
}

// UnlockAccount decrypts the identity for subdomain with password.
func (m *Market) UnlockAccount(subdomain, password string) (*Account, error) {
	raw, exists, err := m.secrets.Get(keystoreKeyPrefix + subdomain)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("no account found for %q", subdomain)
	}

	doc, err := keystore.Unmarshal([]byte(raw))
	if err != nil {
		return nil, err
	}

	payload, err := keystore.Parse(doc, password)
	if err != nil {
		return nil, err
	}

	pub, err := hex.DecodeString(payload.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("corrupted public key in keystore payload: %w", err)
	}
	priv, err := hex.DecodeString(payload.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("corrupted private key in keystore payload: %w", err)
	}

	return &Account{
		Subdomain:  payload.Subdomain,
		Address:    doc.Address,
		PublicKey:  pub,
		PrivateKey: priv,
		Created:    payload.Created,
	}, nil
}

// ListAccounts returns the subdomains that have a keystore in the secret
// store.
func (m *Market) ListAccounts() ([]string, error) {
	keys, err := m.secrets.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list secret store keys: %w", err)
	}

	var subdomains []string
	for _, key := range keys {
		if strings.HasPrefix(key, keystoreKeyPrefix) {
			subdomains = append(subdomains, strings.TrimPrefix(key, keystoreKeyPrefix))
		}
	}
	return subdomains, nil
}

// deriveAddress renders the account identifier: the last 20 bytes of
// keccak256(publicKey), 0x-prefixed.
func deriveAddress(publicKey []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(publicKey)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}
