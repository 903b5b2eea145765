package fairtrade

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/sha3"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

// SellResult is what the seller gets back from a successful listing.
type SellResult struct {
	EscrowID   string
	Commitment commit.Commitment
	SwarmRef   string
	TxHash     string
}

// Sell encrypts content, uploads the sealed payload to the blob store,
// persists the escrow key bundle locally and publishes the key commitment on
// the ledger. The content key never leaves the secret store.
func (m *Market) Sell(ctx context.Context, content []byte) (*SellResult, error) {
	atomic.AddUint64(&m.sellCounter, 1)

	if err := m.requireOnline(); err != nil {
		return nil, err
	}

	sealed, err := commit.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt content: %w", err)
	}

	swarmRef, err := m.blobs.Upload(ctx, sealed.Payload.Marshal())
	if err != nil {
		return nil, fmt.Errorf("failed to upload encrypted payload: %w", err)
	}

	contentHash := hashContent(content)

	receipt, err := m.tx.Execute(ctx, Call{
		Method: "list",
		Args:   []interface{}{sealed.Commitment.Hex(), contentHash, swarmRef},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish commitment: %w", err)
	}
	if receipt.EscrowID == "" {
		return nil, fmt.Errorf("ledger did not assign an escrow id (tx %s)", receipt.TxHash)
	}

	bundle := &EscrowKeyBundle{
		EscrowID:    receipt.EscrowID,
		Key:         sealed.Key,
		Salt:        sealed.Salt,
		SwarmRef:    swarmRef,
		ContentHash: contentHash,
	}
	if err := saveBundle(m.secrets, bundle); err != nil {
		return nil, fmt.Errorf("failed to persist escrow key bundle: %w", err)
	}

	log.Info("listed content for escrow", "escrow", receipt.EscrowID, "commitment", sealed.Commitment.Hex())
	return &SellResult{
		EscrowID:   receipt.EscrowID,
		Commitment: sealed.Commitment,
		SwarmRef:   swarmRef,
		TxHash:     receipt.TxHash,
	}, nil
}

// hashContent returns the keccak256 content hash as 0x-prefixed hex.
func hashContent(content []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(content)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
