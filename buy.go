package fairtrade

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

// AwaitReveal polls the ledger for the key reveal of escrowID and returns
// the verified key material. recipientPrivateKey is the buyer's unlocked
// X25519 private key; expected is the commitment the buyer read from the
// escrow before funding it. The call blocks up to the configured horizon and
// honors context cancellation.
func (m *Market) AwaitReveal(ctx context.Context, escrowID string, expected commit.Commitment, recipientPrivateKey []byte) (*RevealResult, error) {
	if m.ledger == nil {
		return nil, fmt.Errorf("market is offline: no ledger configured")
	}
	watcher := NewRevealWatcher(m.ledger, escrowID, expected, recipientPrivateKey, &m.config)
	return watcher.Wait(ctx)
}

// Buy runs the complete buyer side after the escrow is funded: wait for the
// reveal, download the sealed payload and decrypt it with full commitment
// verification. It returns plaintext only after every check passes.
func (m *Market) Buy(ctx context.Context, escrowID string, expected commit.Commitment, recipientPrivateKey []byte) ([]byte, error) {
	atomic.AddUint64(&m.buyCounter, 1)

	if err := m.requireOnline(); err != nil {
		return nil, err
	}

	result, err := m.AwaitReveal(ctx, escrowID, expected, recipientPrivateKey)
	if err != nil {
		return nil, err
	}

	raw, err := m.blobs.Download(ctx, result.BlobRef)
	if err != nil {
		return nil, fmt.Errorf("failed to download encrypted payload: %w", err)
	}

	payload, err := commit.UnmarshalPayload(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse encrypted payload: %w", err)
	}

	plaintext, err := commit.DecryptVerified(payload, result.Key, result.Salt, expected)
	if err != nil {
		return nil, err
	}

	log.Info("claimed escrow content", "escrow", escrowID, "bytes", len(plaintext))
	return plaintext, nil
}
