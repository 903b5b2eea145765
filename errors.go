package fairtrade

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient is surfaced after the bounded retry budget for a network
	// or ledger hiccup is exhausted.
	ErrTransient = errors.New("ledger temporarily unreachable")
	// ErrTimedOut is the terminal state of a reveal wait whose horizon
	// passed without a valid reveal. The caller decides whether to cancel
	// the escrow.
	ErrTimedOut = errors.New("reveal wait timed out")
	// ErrConfirmationTimeout means a submitted transaction produced no
	// receipt in time. The transaction may still land later; this is
	// "uncertain", not "failed".
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out; it may still be mined")
	// ErrIncompleteBundle is returned when only some of an escrow key
	// bundle's fields are present in the secret store, e.g. after a crash
	// between field writes. The bundle needs explicit repair or a re-sell.
	ErrIncompleteBundle = errors.New("escrow key bundle is incomplete")
	// ErrNoBundle is returned when no bundle field exists for an escrow id.
	ErrNoBundle = errors.New("no escrow key bundle found")
)

// GasCapExceededError reports a fee estimate above the configured safety
// cap. It carries both values so the caller can decide whether to override.
type GasCapExceededError struct {
	Cap      uint64
	Estimate uint64
}

func (e *GasCapExceededError) Error() string {
	return fmt.Sprintf("gas estimate %d exceeds safety cap %d", e.Estimate, e.Cap)
}

// RevertedError reports a ledger rejection with its decoded reason.
type RevertedError struct {
	TxHash string
	Reason string
}

func (e *RevertedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.TxHash)
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash, e.Reason)
}
