package fairtrade

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
	"github.com/fairdatasociety/fairtrade/pkg/keywrap"
)

// RevealResult is the verified outcome of a reveal wait: the recovered
// content key material plus the blob reference, ready for download and
// decryption.
type RevealResult struct {
	Key        []byte
	Salt       []byte
	Commitment commit.Commitment
	BlobRef    string
}

// RevealWatcher polls the ledger for a key reveal tied to one escrow id and
// verifies every candidate against the expected commitment before surfacing
// it. One watcher serves one escrow id; it is not reused.
type RevealWatcher struct {
	ledger     Ledger
	escrowID   string
	expected   commit.Commitment
	privateKey []byte

	pollInterval  time.Duration
	maxWait       time.Duration
	retryBudget   int
	maxMismatches int

	seen map[string]bool
}

// NewRevealWatcher builds a watcher for escrowID. recipientPrivateKey is the
// buyer's unlocked X25519 private key; expected is the commitment the buyer
// read from the escrow before funding it.
func NewRevealWatcher(ledger Ledger, escrowID string, expected commit.Commitment, recipientPrivateKey []byte, config *Config) *RevealWatcher {
	w := &RevealWatcher{
		ledger:        ledger,
		escrowID:      escrowID,
		expected:      expected,
		privateKey:    recipientPrivateKey,
		pollInterval:  config.PollInterval,
		maxWait:       config.MaxWait,
		retryBudget:   config.RetryBudget,
		maxMismatches: config.MaxMismatches,
		seen:          make(map[string]bool),
	}
	if w.pollInterval == 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.maxWait == 0 {
		w.maxWait = DefaultMaxWait
	}
	if w.retryBudget == 0 {
		w.retryBudget = DefaultRetryBudget
	}
	return w
}

// Wait polls until a verified reveal arrives, the horizon passes
// (ErrTimedOut), the context is cancelled, or an unambiguous commitment
// mismatch is surfaced. The per-poll retry budget is separate from the
// horizon accounting: a failed poll is retried with exponential backoff up
// to the budget before the whole wait fails with ErrTransient.
func (w *RevealWatcher) Wait(ctx context.Context) (*RevealResult, error) {
	horizon := time.NewTimer(w.maxWait)
	defer horizon.Stop()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	mismatches := 0
	for {
		events, err := w.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}

		for _, event := range events {
			result, err := w.verify(event)
			if err == nil && result != nil {
				log.Debug("verified key reveal", "escrow", w.escrowID, "tx", event.TxHash)
				return result, nil
			}
			if err != nil {
				// Unambiguous: the reveal was addressed to us, for this
				// escrow, and its key does not match the commitment.
				mismatches++
				log.Warn("key reveal failed commitment check", "escrow", w.escrowID, "tx", event.TxHash, "count", mismatches)
				if mismatches > w.maxMismatches {
					return nil, err
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-horizon.C:
			return nil, fmt.Errorf("%w after %s (escrow %s)", ErrTimedOut, w.maxWait, w.escrowID)
		case <-ticker.C:
		}
	}
}

// poll fetches reveal candidates with a bounded exponential backoff retry
// around transient ledger failures.
func (w *RevealWatcher) poll(ctx context.Context) ([]RevealEvent, error) {
	op := func() ([]RevealEvent, error) {
		return w.ledger.KeyReveals(ctx, w.escrowID)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(w.retryBudget)), ctx)
	return backoff.RetryWithData(op, b)
}

// verify checks one candidate. It returns (nil, nil) for noise that should
// be discarded, (result, nil) for a verified reveal, and a
// commit.ErrCommitmentMismatch error for an unambiguous mismatch.
func (w *RevealWatcher) verify(event RevealEvent) (*RevealResult, error) {
	if event.EscrowID != w.escrowID {
		return nil, nil
	}

	// Stale or duplicate reveals for the same escrow are ignored, never
	// reprocessed.
	id := fmt.Sprintf("%s:%d", event.TxHash, event.LogIndex)
	if w.seen[id] {
		return nil, nil
	}
	w.seen[id] = true

	wrapped, err := keywrap.Unmarshal(event.Wrapped)
	if err != nil {
		log.Debug("discarding malformed reveal", "escrow", w.escrowID, "tx", event.TxHash, "error", err)
		return nil, nil
	}

	secret, err := keywrap.Unwrap(wrapped, w.privateKey)
	if err != nil {
		// Not addressed to us or corrupted; treat as noise and keep polling.
		log.Debug("discarding unreadable reveal", "escrow", w.escrowID, "tx", event.TxHash)
		return nil, nil
	}
	if len(secret) != keywrap.SecretSize {
		log.Debug("discarding reveal with unexpected secret size", "escrow", w.escrowID, "size", len(secret))
		return nil, nil
	}

	key := secret[:commit.KeySize]
	salt := secret[commit.KeySize:]

	recomputed := commit.Compute(key, salt)
	if !recomputed.Equal(w.expected) {
		return nil, fmt.Errorf("%w: reveal for escrow %s does not match expected commitment %s", commit.ErrCommitmentMismatch, w.escrowID, w.expected.Hex())
	}

	return &RevealResult{
		Key:        key,
		Salt:       salt,
		Commitment: recomputed,
		BlobRef:    event.BlobRef,
	}, nil
}
