package fairtrade

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

// Secret store key layout: one entry per logical field. The four entries of
// one bundle are written independently; a crash between writes leaves a
// partial bundle that reads must detect, never silently accept.
const (
	bundleKeySuffix         = "_KEY"
	bundleSaltSuffix        = "_SALT"
	bundleSwarmSuffix       = "_SWARM"
	bundleContentHashSuffix = "_CONTENT_HASH"
	bundlePrefix            = "ESCROW_"
)

// EscrowKeyBundle is the seller's local secret material for one escrow id.
// The buyer never needs it; the buyer derives its own copy from the wrapped
// reveal.
type EscrowKeyBundle struct {
	EscrowID    string
	Key         []byte
	Salt        []byte
	SwarmRef    string
	ContentHash string
}

// Commitment recomputes the publishable commitment for the bundle.
func (b *EscrowKeyBundle) Commitment() commit.Commitment {
	return commit.Compute(b.Key, b.Salt)
}

func bundleFieldKey(escrowID, suffix string) string {
	return bundlePrefix + escrowID + suffix
}

// saveBundle writes the four fields of a bundle. The secret store has no
// cross-key atomicity, so the write order puts the secret material first and
// the ContentHash field last; a bundle is only complete once all four exist.
func saveBundle(store SecretStore, bundle *EscrowKeyBundle) error {
	fields := []struct {
		suffix string
		value  string
	}{
		{bundleKeySuffix, hex.EncodeToString(bundle.Key)},
		{bundleSaltSuffix, hex.EncodeToString(bundle.Salt)},
		{bundleSwarmSuffix, bundle.SwarmRef},
		{bundleContentHashSuffix, bundle.ContentHash},
	}

	for _, f := range fields {
		if err := store.Set(bundleFieldKey(bundle.EscrowID, f.suffix), f.value); err != nil {
			return fmt.Errorf("failed to store bundle field %s%s: %w", bundle.EscrowID, f.suffix, err)
		}
	}
	return nil
}

// loadBundle reads a bundle back. Missing everything yields ErrNoBundle;
// missing only some fields yields ErrIncompleteBundle so the caller can
// repair or re-sell instead of operating on half a record.
func loadBundle(store SecretStore, escrowID string) (*EscrowKeyBundle, error) {
	suffixes := []string{bundleKeySuffix, bundleSaltSuffix, bundleSwarmSuffix, bundleContentHashSuffix}

	values := make(map[string]string, len(suffixes))
	present := 0
	for _, suffix := range suffixes {
		value, ok, err := store.Get(bundleFieldKey(escrowID, suffix))
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle field %s%s: %w", escrowID, suffix, err)
		}
		if ok {
			values[suffix] = value
			present++
		}
	}

	if present == 0 {
		return nil, fmt.Errorf("%w: escrow %s", ErrNoBundle, escrowID)
	}
	if present < len(suffixes) {
		return nil, fmt.Errorf("%w: escrow %s has %d of %d fields", ErrIncompleteBundle, escrowID, present, len(suffixes))
	}

	key, err := hex.DecodeString(values[bundleKeySuffix])
	if err != nil {
		return nil, fmt.Errorf("corrupted bundle key for escrow %s: %w", escrowID, err)
	}
	salt, err := hex.DecodeString(values[bundleSaltSuffix])
	if err != nil {
		return nil, fmt.Errorf("corrupted bundle salt for escrow %s: %w", escrowID, err)
	}

	return &EscrowKeyBundle{
		EscrowID:    escrowID,
		Key:         key,
		Salt:        salt,
		SwarmRef:    values[bundleSwarmSuffix],
		ContentHash: values[bundleContentHashSuffix],
	}, nil
}

// removeBundle discards the bundle's secret material after a successful
// claim or cancellation.
func removeBundle(store SecretStore, escrowID string) error {
	suffixes := []string{bundleKeySuffix, bundleSaltSuffix, bundleSwarmSuffix, bundleContentHashSuffix}
	for _, suffix := range suffixes {
		if _, err := store.Remove(bundleFieldKey(escrowID, suffix)); err != nil {
			return fmt.Errorf("failed to remove bundle field %s%s: %w", escrowID, suffix, err)
		}
	}
	return nil
}

// StoreBundle persists an escrow key bundle. Exposed so callers can repair
// a partial bundle explicitly instead of the library guessing at recovery.
func (m *Market) StoreBundle(bundle *EscrowKeyBundle) error {
	return saveBundle(m.secrets, bundle)
}

// LoadBundle reads the bundle for escrowID, failing with ErrNoBundle or
// ErrIncompleteBundle as appropriate.
func (m *Market) LoadBundle(escrowID string) (*EscrowKeyBundle, error) {
	return loadBundle(m.secrets, escrowID)
}

// listBundleIDs extracts the distinct escrow ids that have at least one
// bundle field in the store.
func listBundleIDs(store SecretStore) ([]string, error) {
	keys, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list secret store keys: %w", err)
	}

	suffixes := []string{bundleKeySuffix, bundleSaltSuffix, bundleSwarmSuffix, bundleContentHashSuffix}
	seen := make(map[string]bool)
	var ids []string
	for _, key := range keys {
		if !strings.HasPrefix(key, bundlePrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, bundlePrefix)
		for _, suffix := range suffixes {
			if strings.HasSuffix(rest, suffix) {
				id := strings.TrimSuffix(rest, suffix)
				if id != "" && !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
				break
			}
		}
	}
	return ids, nil
}
