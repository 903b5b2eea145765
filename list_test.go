package fairtrade

import (
	"errors"
	"testing"
)

func TestListBundlesWithPartial(t *testing.T) {
	market := setupLocalMarket(t)

	complete := testBundle(t, "1")
	if err := market.StoreBundle(complete); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}
	// A partial bundle, as a crash between field writes would leave it.
	if err := market.secrets.Set(bundleFieldKey("2", bundleKeySuffix), "aa"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	infos, err := market.ListBundles()
	if err != nil {
		t.Fatalf("ListBundles failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 bundles, got %d", len(infos))
	}

	byID := make(map[string]BundleInfo)
	for _, info := range infos {
		byID[info.EscrowID] = info
	}

	if !byID["1"].Complete {
		t.Error("Expected bundle 1 to be complete")
	}
	if byID["1"].Commitment != complete.Commitment().Hex() {
		t.Errorf("Expected commitment %s, got %s", complete.Commitment().Hex(), byID["1"].Commitment)
	}
	if byID["2"].Complete {
		t.Error("Expected bundle 2 to be incomplete")
	}
	if byID["2"].Commitment != "" {
		t.Error("Expected no commitment for an incomplete bundle")
	}
}

func TestDiscardBundle(t *testing.T) {
	market := setupLocalMarket(t)

	if err := market.StoreBundle(testBundle(t, "1")); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}
	if err := market.DiscardBundle("1"); err != nil {
		t.Fatalf("DiscardBundle failed: %v", err)
	}
	if _, err := market.LoadBundle("1"); !errors.Is(err, ErrNoBundle) {
		t.Fatalf("Expected ErrNoBundle after discard, got %v", err)
	}
}

func TestValidateBundle(t *testing.T) {
	market := setupLocalMarket(t)

	if err := market.StoreBundle(testBundle(t, "1")); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}
	if err := market.ValidateBundle("1"); err != nil {
		t.Errorf("Expected a stored bundle to validate, got %v", err)
	}

	// Truncated key material must fail validation.
	bad := testBundle(t, "2")
	bad.Key = bad.Key[:16]
	if err := market.StoreBundle(bad); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}
	if err := market.ValidateBundle("2"); err == nil {
		t.Error("Expected truncated key to fail validation")
	}

	empty := testBundle(t, "3")
	empty.SwarmRef = ""
	if err := market.StoreBundle(empty); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}
	if err := market.ValidateBundle("3"); err == nil {
		t.Error("Expected empty blob reference to fail validation")
	}
}

func TestValidateAll(t *testing.T) {
	market := setupLocalMarket(t)

	if err := market.StoreBundle(testBundle(t, "1")); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}
	bad := testBundle(t, "2")
	bad.ContentHash = "not hex"
	if err := market.StoreBundle(bad); err != nil {
		t.Fatalf("StoreBundle failed: %v", err)
	}

	results, err := market.ValidateAll()
	if err != nil {
		t.Fatalf("ValidateAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	passed := 0
	for _, res := range results {
		if res.Passed() {
			passed++
		}
	}
	if passed != 1 {
		t.Errorf("Expected exactly 1 bundle to pass, got %d", passed)
	}
}
