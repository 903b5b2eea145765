package fairtrade

import (
	"crypto/rand"
	"errors"
	"sort"
	"testing"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

func testBundle(t *testing.T, escrowID string) *EscrowKeyBundle {
	t.Helper()

	key := make([]byte, commit.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	salt := make([]byte, commit.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	return &EscrowKeyBundle{
		EscrowID:    escrowID,
		Key:         key,
		Salt:        salt,
		SwarmRef:    "cafebabe" + escrowID,
		ContentHash: hashContent([]byte("content " + escrowID)),
	}
}

func TestBundleSaveLoad(t *testing.T) {
	store := newMemStore()
	bundle := testBundle(t, "42")

	if err := saveBundle(store, bundle); err != nil {
		t.Fatalf("saveBundle failed: %v", err)
	}

	loaded, err := loadBundle(store, "42")
	if err != nil {
		t.Fatalf("loadBundle failed: %v", err)
	}

	if string(loaded.Key) != string(bundle.Key) {
		t.Error("Loaded key does not match stored key")
	}
	if string(loaded.Salt) != string(bundle.Salt) {
		t.Error("Loaded salt does not match stored salt")
	}
	if loaded.SwarmRef != bundle.SwarmRef {
		t.Errorf("Expected swarm ref %s, got %s", bundle.SwarmRef, loaded.SwarmRef)
	}
	if loaded.ContentHash != bundle.ContentHash {
		t.Errorf("Expected content hash %s, got %s", bundle.ContentHash, loaded.ContentHash)
	}
	if !loaded.Commitment().Equal(bundle.Commitment()) {
		t.Error("Loaded bundle recomputes a different commitment")
	}
}

func TestBundleMissing(t *testing.T) {
	store := newMemStore()

	_, err := loadBundle(store, "7")
	if !errors.Is(err, ErrNoBundle) {
		t.Fatalf("Expected ErrNoBundle for an unknown escrow, got %v", err)
	}
}

func TestBundleIncomplete(t *testing.T) {
	store := newMemStore()
	bundle := testBundle(t, "7")

	if err := saveBundle(store, bundle); err != nil {
		t.Fatalf("saveBundle failed: %v", err)
	}
	// Simulate a crash between field writes.
	if _, err := store.Remove(bundleFieldKey("7", bundleContentHashSuffix)); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	_, err := loadBundle(store, "7")
	if !errors.Is(err, ErrIncompleteBundle) {
		t.Fatalf("Expected ErrIncompleteBundle for a partial bundle, got %v", err)
	}
}

func TestBundleRemove(t *testing.T) {
	store := newMemStore()
	bundle := testBundle(t, "9")

	if err := saveBundle(store, bundle); err != nil {
		t.Fatalf("saveBundle failed: %v", err)
	}
	if err := removeBundle(store, "9"); err != nil {
		t.Fatalf("removeBundle failed: %v", err)
	}

	_, err := loadBundle(store, "9")
	if !errors.Is(err, ErrNoBundle) {
		t.Fatalf("Expected ErrNoBundle after removal, got %v", err)
	}
	// Removing again is a no-op, not an error.
	if err := removeBundle(store, "9"); err != nil {
		t.Errorf("removeBundle on a missing bundle failed: %v", err)
	}
}

func TestBundleCorruptedHex(t *testing.T) {
	store := newMemStore()
	bundle := testBundle(t, "11")

	if err := saveBundle(store, bundle); err != nil {
		t.Fatalf("saveBundle failed: %v", err)
	}
	if err := store.Set(bundleFieldKey("11", bundleKeySuffix), "not hex at all"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := loadBundle(store, "11"); err == nil {
		t.Fatal("Expected error for corrupted key field, got nil")
	}
}

func TestListBundleIDs(t *testing.T) {
	store := newMemStore()

	for _, id := range []string{"1", "2", "3"} {
		if err := saveBundle(store, testBundle(t, id)); err != nil {
			t.Fatalf("saveBundle failed for escrow %s: %v", id, err)
		}
	}
	// A partial bundle still surfaces its id.
	if err := store.Set(bundleFieldKey("4", bundleKeySuffix), "aa"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// Unrelated entries do not.
	if err := store.Set("KEYSTORE_alice", "{}"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ids, err := listBundleIDs(store)
	if err != nil {
		t.Fatalf("listBundleIDs failed: %v", err)
	}

	sort.Strings(ids)
	expected := []string{"1", "2", "3", "4"}
	if len(ids) != len(expected) {
		t.Fatalf("Expected %d ids, got %d: %v", len(expected), len(ids), ids)
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("Expected id %s at position %d, got %s", id, i, ids[i])
		}
	}
}
