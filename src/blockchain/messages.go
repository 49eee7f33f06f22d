package blockchain

import (
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/store"
)

// Message is anything that travels on the block request channel.
type Message interface {
	isMessage()
}

// Event is a bitmask of the event kinds a subscriber wants.
type Event uint8

const (
	// EventTransaction is raised for every transaction accepted in the pool.
	EventTransaction Event = 1 << iota
	// EventBlock is raised for every committed block.
	EventBlock
)

// Exception is the reply to a request that failed.
type Exception struct {
	Err common.ChainErr
}

// GetAccountRequest asks for an account and some of its data entries.
type GetAccountRequest struct {
	ID   string
	Data []string
}

// GetAccountResponse carries the requested account. Data holds one entry per
// requested key, nil for missing keys.
type GetAccountResponse struct {
	Account store.Account
	Data    [][]byte
}

// SubscribeRequest registers a subscriber. Events are streamed on the Receiver
// returned by SendSync.
type SubscribeRequest struct {
	ID     string
	Events Event
}

// UnsubscribeRequest removes event kinds from a subscriber. It gets no reply.
type UnsubscribeRequest struct {
	ID     string
	Events Event
}

// GetBlockRequest ...
type GetBlockRequest struct {
	Height uint64
}

// GetBlockResponse is both the reply to GetBlockRequest and the block event
// sent to subscribers.
type GetBlockResponse struct {
	Block Block
	Txs   []crypto.Hash
}

// TransactionEvent is sent to subscribers when a transaction enters the pool.
type TransactionEvent struct {
	Hash crypto.Hash
}

// PutTransactionRequest submits a transaction to the pool.
type PutTransactionRequest struct {
	Confirm bool
	Tx      Transaction
}

// PutTransactionResponse ...
type PutTransactionResponse struct {
	Hash crypto.Hash
}

// GetTransactionRequest ...
type GetTransactionRequest struct {
	Hash crypto.Hash
}

// GetTransactionResponse ...
type GetTransactionResponse struct {
	Tx Transaction
}

// GetReceiptRequest ...
type GetReceiptRequest struct {
	Hash crypto.Hash
}

// GetReceiptResponse ...
type GetReceiptResponse struct {
	Receipt Receipt
}

// GetNetworkIDRequest ...
type GetNetworkIDRequest struct{}

// GetNetworkIDResponse ...
type GetNetworkIDResponse struct {
	Name string
}

// GetCoreStatsRequest ...
type GetCoreStatsRequest struct{}

// GetCoreStatsResponse reports the pool and the last committed block, nil when
// no block was committed yet.
type GetCoreStatsResponse struct {
	PoolHash  crypto.Hash
	PoolSize  int
	LastBlock *Block
}

// GetSeedRequest ...
type GetSeedRequest struct{}

// GetSeedResponse ...
type GetSeedResponse struct {
	Seed uint64
}

func (Exception) isMessage()              {}
func (GetAccountRequest) isMessage()      {}
func (GetAccountResponse) isMessage()     {}
func (SubscribeRequest) isMessage()       {}
func (UnsubscribeRequest) isMessage()     {}
func (GetBlockRequest) isMessage()        {}
func (GetBlockResponse) isMessage()       {}
func (TransactionEvent) isMessage()       {}
func (PutTransactionRequest) isMessage()  {}
func (PutTransactionResponse) isMessage() {}
func (GetTransactionRequest) isMessage()  {}
func (GetTransactionResponse) isMessage() {}
func (GetReceiptRequest) isMessage()      {}
func (GetReceiptResponse) isMessage()     {}
func (GetNetworkIDRequest) isMessage()    {}
func (GetNetworkIDResponse) isMessage()   {}
func (GetCoreStatsRequest) isMessage()    {}
func (GetCoreStatsResponse) isMessage()   {}
func (GetSeedRequest) isMessage()         {}
func (GetSeedResponse) isMessage()        {}

// exception wraps an error into an Exception message.
func exception(err error) Exception {
	if chainErr, ok := err.(common.ChainErr); ok {
		return Exception{Err: chainErr}
	}
	return Exception{Err: common.NewChainErr(common.Other, "%v", err)}
}
