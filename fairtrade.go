// Package fairtrade implements the cryptographic escrow and key-reveal core
// of a data marketplace: a seller encrypts content, publishes a commitment
// to its key on a ledger, and later reveals the key wrapped to one specific
// buyer; the buyer polls for the reveal and verifies it before trusting it.
package fairtrade

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Market is the main handle. It owns no ambient state: the secret store,
// ledger and blob store collaborators are injected explicitly.
type Market struct {
	secrets SecretStore
	ledger  Ledger
	blobs   BlobStore
	tx      *TxRunner
	config  Config

	sellCounter uint64
	buyCounter  uint64
}

// Init wires a Market from its collaborators. The caller serializes
// per-escrow operations; no two writes to the same escrow id are ever issued
// concurrently by this core.
func Init(secrets SecretStore, ledger Ledger, blobs BlobStore, config *Config) (*Market, error) {
	config.applyDefaults()
	log = config.Logger

	if err := config.checkConfig(); err != nil {
		return nil, fmt.Errorf("error checking config for Market: %w", err)
	}
	if secrets == nil {
		return nil, fmt.Errorf("secret store must not be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger must not be nil")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store must not be nil")
	}

	return &Market{
		secrets: secrets,
		ledger:  ledger,
		blobs:   blobs,
		tx:      NewTxRunner(ledger, config.GasCap, config.ConfirmTimeout, config.ReceiptInterval),
		config:  *config,
	}, nil
}

// InitLocal wires a Market without ledger and blob store collaborators. The
// local operations (accounts, bundles, validation) work normally; the
// chain-facing operations fail with an offline error.
func InitLocal(secrets SecretStore, config *Config) (*Market, error) {
	config.applyDefaults()
	log = config.Logger

	if err := config.checkConfig(); err != nil {
		return nil, fmt.Errorf("error checking config for Market: %w", err)
	}
	if secrets == nil {
		return nil, fmt.Errorf("secret store must not be nil")
	}

	return &Market{
		secrets: secrets,
		config:  *config,
	}, nil
}

func (m *Market) requireOnline() error {
	if m.ledger == nil || m.blobs == nil || m.tx == nil {
		return fmt.Errorf("market is offline: no ledger or blob store configured")
	}
	return nil
}

// TxRunner exposes the transaction execution helper for callers that need
// to drive contract writes outside the sell/reveal/buy flows.
func (m *Market) TxRunner() *TxRunner {
	return m.tx
}
