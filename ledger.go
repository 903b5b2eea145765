package fairtrade

import "context"

// Call describes one state-changing ledger operation. The concrete contract
// ABI lives behind the Ledger implementation; the core only names the method
// and passes its arguments through.
type Call struct {
	Method string
	Args   []interface{}
}

// Receipt is the ledger's confirmation of a submitted call.
type Receipt struct {
	TxHash   string
	Status   uint64 // 1 success, 0 reverted
	GasUsed  uint64
	EscrowID string // escrow id assigned by the contract, when the call creates one
	Revert   string // decoded revert reason, when Status is 0
}

// RevealEvent is one decoded key-reveal log entry tied to an escrow id.
type RevealEvent struct {
	EscrowID string
	Wrapped  []byte // framed keywrap.WrappedKey as published on chain
	BlobRef  string // content reference for the encrypted payload
	TxHash   string
	LogIndex uint
}

// Ledger is the external chain collaborator. Reads go straight through;
// writes go through TxRunner.
type Ledger interface {
	// EstimateGas returns the fee estimate for call in wei.
	EstimateGas(ctx context.Context, call Call) (uint64, error)
	// Submit signs and submits call, returning the transaction hash.
	Submit(ctx context.Context, call Call) (string, error)
	// Receipt returns the receipt for txHash, or nil if not yet mined.
	Receipt(ctx context.Context, txHash string) (*Receipt, error)
	// KeyReveals returns the decoded key-reveal events for escrowID.
	KeyReveals(ctx context.Context, escrowID string) ([]RevealEvent, error)
}

// SecretStore is the local key-value secret storage collaborator. Writes are
// set/overwrite with no transactional semantics across keys.
type SecretStore interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Remove(key string) (bool, error)
	List() ([]string, error)
}

// BlobStore is the decentralized blob storage collaborator. References are
// fixed-length hex content references.
type BlobStore interface {
	Upload(ctx context.Context, data []byte) (string, error)
	Download(ctx context.Context, ref string) ([]byte, error)
}
