package fairtrade

import (
	"context"
	"fmt"
	"sync"
)

// memStore is an in-memory SecretStore for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *memStore) Remove(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

func (s *memStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// memBlobs is an in-memory BlobStore for tests.
type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	next int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (b *memBlobs) Upload(_ context.Context, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	ref := fmt.Sprintf("%064x", b.next)
	b.data[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (b *memBlobs) Download(_ context.Context, ref string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[ref]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", ref)
	}
	return append([]byte(nil), data...), nil
}

// fakeLedger is a Ledger whose behavior is configured per test through
// function fields. Unset fields get benign defaults.
type fakeLedger struct {
	mu sync.Mutex

	estimateFn func(Call) (uint64, error)
	submitFn   func(Call) (string, error)
	receiptFn  func(string) (*Receipt, error)
	revealsFn  func(string) ([]RevealEvent, error)

	revealCalls int
}

func (l *fakeLedger) EstimateGas(_ context.Context, call Call) (uint64, error) {
	if l.estimateFn != nil {
		return l.estimateFn(call)
	}
	return 21000, nil
}

func (l *fakeLedger) Submit(_ context.Context, call Call) (string, error) {
	if l.submitFn != nil {
		return l.submitFn(call)
	}
	return "0xtx", nil
}

func (l *fakeLedger) Receipt(_ context.Context, txHash string) (*Receipt, error) {
	if l.receiptFn != nil {
		return l.receiptFn(txHash)
	}
	return &Receipt{TxHash: txHash, Status: 1}, nil
}

func (l *fakeLedger) KeyReveals(_ context.Context, escrowID string) ([]RevealEvent, error) {
	l.mu.Lock()
	l.revealCalls++
	l.mu.Unlock()
	if l.revealsFn != nil {
		return l.revealsFn(escrowID)
	}
	return nil, nil
}

func (l *fakeLedger) pollCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revealCalls
}
