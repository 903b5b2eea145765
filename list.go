package fairtrade

import (
	"errors"
	"fmt"
)

// BundleInfo describes one locally stored escrow key bundle for display.
type BundleInfo struct {
	EscrowID    string
	Complete    bool
	Commitment  string // 0x hex, empty when the bundle is incomplete
	SwarmRef    string
	ContentHash string
}

// ListBundles returns information about every escrow key bundle in the
// secret store, including partially written ones.
func (m *Market) ListBundles() ([]BundleInfo, error) {
	ids, err := listBundleIDs(m.secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	infos := make([]BundleInfo, 0, len(ids))
	for _, id := range ids {
		info := BundleInfo{EscrowID: id}

		bundle, err := loadBundle(m.secrets, id)
		switch {
		case err == nil:
			info.Complete = true
			info.Commitment = bundle.Commitment().Hex()
			info.SwarmRef = bundle.SwarmRef
			info.ContentHash = bundle.ContentHash
		case errors.Is(err, ErrIncompleteBundle):
			// Shown as incomplete; requires explicit repair or re-sell.
		default:
			log.Error("failed to load bundle", "escrow", id, "error", err)
			continue
		}

		infos = append(infos, info)
	}
	return infos, nil
}

// DiscardBundle removes all fields of an escrow key bundle, complete or not.
// Used after a cancellation or to clean up a partial write.
func (m *Market) DiscardBundle(escrowID string) error {
	return removeBundle(m.secrets, escrowID)
}
