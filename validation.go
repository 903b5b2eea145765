package fairtrade

import (
	"fmt"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

// ValidationResult captures the outcome of validating a single bundle.
type ValidationResult struct {
	EscrowID string
	Err      error
}

// Passed reports whether the validation succeeded.
func (r ValidationResult) Passed() bool {
	return r.Err == nil
}

// ValidateBundle verifies that the stored bundle for escrowID is complete
// and internally consistent.
func (m *Market) ValidateBundle(escrowID string) error {
	bundle, err := loadBundle(m.secrets, escrowID)
	if err != nil {
		return err
	}

	if len(bundle.Key) != commit.KeySize {
		return fmt.Errorf("bundle key has %d bytes, expected %d", len(bundle.Key), commit.KeySize)
	}
	if len(bundle.Salt) != commit.SaltSize {
		return fmt.Errorf("bundle salt has %d bytes, expected %d", len(bundle.Salt), commit.SaltSize)
	}
	if bundle.SwarmRef == "" {
		return fmt.Errorf("bundle has empty blob reference")
	}
	if _, err := commit.ParseHex(bundle.ContentHash); err != nil {
		return fmt.Errorf("bundle content hash is invalid: %w", err)
	}

	return nil
}

// ValidateAll iterates over all stored bundles and returns a validation
// result per escrow id.
func (m *Market) ValidateAll() ([]ValidationResult, error) {
	ids, err := listBundleIDs(m.secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles for validation: %w", err)
	}

	results := make([]ValidationResult, 0, len(ids))
	for _, id := range ids {
		res := ValidationResult{EscrowID: id}
		if err := m.ValidateBundle(id); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}

	return results, nil
}
