package fairtrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

// stubChain is a stateful in-memory ledger: listings assign escrow ids and
// remember the blobReference, reveals become queryable events.
type stubChain struct {
	mu       sync.Mutex
	nextID   int
	receipts map[string]*Receipt
	listings map[string]string
	reveals  map[string][]RevealEvent
}

func newStubChain() *stubChain {
	return &stubChain{
		receipts: make(map[string]*Receipt),
		listings: make(map[string]string),
		reveals:  make(map[string][]RevealEvent),
	}
}

func (c *stubChain) EstimateGas(_ context.Context, call Call) (uint64, error) {
	return 40000, nil
}

func (c *stubChain) Submit(_ context.Context, call Call) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	txHash := fmt.Sprintf("0x%04x", len(c.receipts)+1)
	receipt := &Receipt{TxHash: txHash, Status: 1, GasUsed: 40000}

	switch call.Method {
	case "list":
		c.nextID++
		escrowID := fmt.Sprintf("%d", c.nextID)
		c.listings[escrowID] = call.Args[2].(string)
		receipt.EscrowID = escrowID
	case "reveal":
		escrowID := call.Args[0].(string)
		if _, ok := c.listings[escrowID]; !ok {
			return "", fmt.Errorf("unknown escrow %s", escrowID)
		}
		c.reveals[escrowID] = append(c.reveals[escrowID], RevealEvent{
			EscrowID: escrowID,
			Wrapped:  call.Args[1].([]byte),
			BlobRef:  c.listings[escrowID],
			TxHash:   txHash,
			LogIndex: uint(len(c.reveals[escrowID])),
		})
		receipt.EscrowID = escrowID
	default:
		return "", fmt.Errorf("unknown method %s", call.Method)
	}

	c.receipts[txHash] = receipt
	return txHash, nil
}

func (c *stubChain) Receipt(_ context.Context, txHash string) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, nil
	}
	return receipt, nil
}

func (c *stubChain) KeyReveals(_ context.Context, escrowID string) ([]RevealEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RevealEvent(nil), c.reveals[escrowID]...), nil
}

func setupMarket(t *testing.T) (*Market, *stubChain, *memBlobs) {
	t.Helper()

	chain := newStubChain()
	blobs := newMemBlobs()
	config := &Config{
		ConfirmTimeout:  time.Second,
		ReceiptInterval: 5 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
		MaxWait:         2 * time.Second,
		RetryBudget:     1,
	}

	market, err := Init(newMemStore(), chain, blobs, config)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return market, chain, blobs
}

func TestSellRevealBuy(t *testing.T) {
	market, _, _ := setupMarket(t)
	ctx := context.Background()
	content := []byte("hello data")

	seller, err := market.CreateAccount("seller", "correct horse battery")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	buyer, err := market.CreateAccount("buyer", "correct horse battery")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	_ = seller

	sold, err := market.Sell(ctx, content)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if sold.EscrowID == "" {
		t.Fatal("Sell returned an empty escrow id")
	}

	// The seller's bundle must survive until the reveal.
	bundle, err := market.LoadBundle(sold.EscrowID)
	if err != nil {
		t.Fatalf("LoadBundle failed after Sell: %v", err)
	}
	if !bundle.Commitment().Equal(sold.Commitment) {
		t.Error("Stored bundle recomputes a different commitment than the listing")
	}

	// The buyer funds the escrow off screen, then the seller reveals.
	if _, err := market.Reveal(ctx, sold.EscrowID, buyer.PublicKey); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	// The bundle is discarded after a confirmed reveal.
	if _, err := market.LoadBundle(sold.EscrowID); !errors.Is(err, ErrNoBundle) {
		t.Errorf("Expected ErrNoBundle after reveal, got %v", err)
	}

	plaintext, err := market.Buy(ctx, sold.EscrowID, sold.Commitment, buyer.PrivateKey)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if string(plaintext) != string(content) {
		t.Fatalf("Expected %q, got %q", content, plaintext)
	}
}

func TestBuyWrongRecipient(t *testing.T) {
	market, _, _ := setupMarket(t)
	ctx := context.Background()

	buyer, err := market.CreateAccount("buyer", "correct horse battery")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	eavesdropper, err := market.CreateAccount("eve", "correct horse battery")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	sold, err := market.Sell(ctx, []byte("hello data"))
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if _, err := market.Reveal(ctx, sold.EscrowID, buyer.PublicKey); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	// A reveal wrapped to the buyer is noise for anyone else; the
	// eavesdropper just times out.
	ctx2, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = market.Buy(ctx2, sold.EscrowID, sold.Commitment, eavesdropper.PrivateKey)
	if err == nil {
		t.Fatal("Expected the eavesdropper's claim to fail, got nil")
	}
	if errors.Is(err, commit.ErrCommitmentMismatch) {
		t.Fatal("An unreadable reveal must not be reported as a mismatch")
	}
}

func TestRevealUnknownEscrow(t *testing.T) {
	market, _, _ := setupMarket(t)

	buyer, err := market.CreateAccount("buyer", "correct horse battery")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	_, err = market.Reveal(context.Background(), "999", buyer.PublicKey)
	if !errors.Is(err, ErrNoBundle) {
		t.Fatalf("Expected ErrNoBundle for unknown escrow, got %v", err)
	}
}

func TestBuyTamperedBlob(t *testing.T) {
	market, chain, blobs := setupMarket(t)
	ctx := context.Background()

	buyer, err := market.CreateAccount("buyer", "correct horse battery")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	sold, err := market.Sell(ctx, []byte("hello data"))
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if _, err := market.Reveal(ctx, sold.EscrowID, buyer.PublicKey); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	// Corrupt the stored payload out from under the buyer.
	ref := chain.listings[sold.EscrowID]
	blobs.mu.Lock()
	raw := blobs.data[ref]
	raw[len(raw)-1] ^= 0xff
	blobs.mu.Unlock()

	_, err = market.Buy(ctx, sold.EscrowID, sold.Commitment, buyer.PrivateKey)
	if !errors.Is(err, commit.ErrIntegrity) {
		t.Fatalf("Expected ErrIntegrity for tampered payload, got %v", err)
	}
}

func TestSellThenListBundles(t *testing.T) {
	market, _, _ := setupMarket(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := market.Sell(ctx, []byte("hello data")); err != nil {
			t.Fatalf("Sell failed: %v", err)
		}
	}

	infos, err := market.ListBundles()
	if err != nil {
		t.Fatalf("ListBundles failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 bundles, got %d", len(infos))
	}
	for _, info := range infos {
		if !info.Complete {
			t.Errorf("Expected bundle %s to be complete", info.EscrowID)
		}
	}
}
