package fairtrade

import (
	"context"
	"fmt"
	"time"
)

// TxRunner submits state-changing ledger operations with a fee safety cap
// and bounded confirmation waiting. Every write the library performs goes
// through it; reads hit the Ledger directly.
type TxRunner struct {
	ledger          Ledger
	gasCap          uint64
	confirmTimeout  time.Duration
	receiptInterval time.Duration
}

// NewTxRunner wires a runner against ledger with the given limits.
func NewTxRunner(ledger Ledger, gasCap uint64, confirmTimeout, receiptInterval time.Duration) *TxRunner {
	if gasCap == 0 {
		gasCap = DefaultGasCap
	}
	if confirmTimeout == 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	if receiptInterval == 0 {
		receiptInterval = DefaultReceiptInterval
	}
	return &TxRunner{
		ledger:          ledger,
		gasCap:          gasCap,
		confirmTimeout:  confirmTimeout,
		receiptInterval: receiptInterval,
	}
}

// EstimateAndValidateGas returns the fee estimate for call, or a
// GasCapExceededError carrying both the cap and the estimate. It never
// prompts; the caller decides whether to proceed.
func (r *TxRunner) EstimateAndValidateGas(ctx context.Context, call Call) (uint64, error) {
	estimate, err := r.ledger.EstimateGas(ctx, call)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas for %q: %w", call.Method, err)
	}
	if estimate > r.gasCap {
		return 0, &GasCapExceededError{Cap: r.gasCap, Estimate: estimate}
	}
	return estimate, nil
}

// Execute validates the fee, submits call and waits for its receipt. A
// missing receipt after the confirmation timeout yields
// ErrConfirmationTimeout; a reverted receipt yields a RevertedError with the
// decoded reason.
func (r *TxRunner) Execute(ctx context.Context, call Call) (*Receipt, error) {
	if _, err := r.EstimateAndValidateGas(ctx, call); err != nil {
		return nil, err
	}

	txHash, err := r.ledger.Submit(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %q: %w", call.Method, err)
	}

	log.Debug("submitted transaction", "method", call.Method, "tx", txHash)
	return r.waitForReceipt(ctx, txHash)
}

func (r *TxRunner) waitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	deadline := time.NewTimer(r.confirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.receiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := r.ledger.Receipt(ctx, txHash)
		if err != nil {
			log.Debug("receipt poll failed", "tx", txHash, "error", err)
		} else if receipt != nil {
			if receipt.Status == 0 {
				return nil, &RevertedError{TxHash: txHash, Reason: receipt.Revert}
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w (tx %s)", ErrConfirmationTimeout, txHash)
		case <-ticker.C:
		}
	}
}
