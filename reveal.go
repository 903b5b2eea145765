package fairtrade

import (
	"context"
	"fmt"

	"github.com/fairdatasociety/fairtrade/pkg/keywrap"
)

// Reveal wraps the escrow's content key to the buyer's public key and
// publishes it on the ledger. On confirmation the local bundle's secret
// material is discarded; the wrapped reveal on chain is then the only copy,
// readable solely by the buyer.
func (m *Market) Reveal(ctx context.Context, escrowID string, buyerPublicKey []byte) (*Receipt, error) {
	if err := m.requireOnline(); err != nil {
		return nil, err
	}

	bundle, err := loadBundle(m.secrets, escrowID)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, 0, keywrap.SecretSize)
	secret = append(secret, bundle.Key...)
	secret = append(secret, bundle.Salt...)

	wrapped, err := keywrap.Wrap(secret, buyerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap content key for buyer: %w", err)
	}

	receipt, err := m.tx.Execute(ctx, Call{
		Method: "reveal",
		Args:   []interface{}{escrowID, wrapped.Marshal()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish key reveal: %w", err)
	}

	if err := removeBundle(m.secrets, escrowID); err != nil {
		log.Warn("failed to discard escrow key bundle after reveal", "escrow", escrowID, "error", err)
	}

	log.Info("revealed key for escrow", "escrow", escrowID, "tx", receipt.TxHash)
	return receipt, nil
}
