// Package bridge exposes the block channel to local applications over
// JSON-RPC.
package bridge

import (
	"context"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/sirupsen/logrus"
)

// ServiceName is the name the RPC methods are registered under.
const ServiceName = "Bridge"

// Empty is the argument of methods that take none.
type Empty struct{}

// AccountReply ...
type AccountReply struct {
	ID       string
	Contract string
	Assets   map[string][]byte
	Data     [][]byte
}

// AccountArgs ...
type AccountArgs struct {
	ID   string
	Data []string
}

// Bridge is the RPC receiver. Every method is served by a request on the
// block channel.
type Bridge struct {
	sender  *blockchain.RequestSender
	timeout time.Duration
	logger  *logrus.Entry
}

func (b *Bridge) request(msg blockchain.Message) (blockchain.Message, error) {
	ctx := context.Background()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	reply, err := b.sender.Request(ctx, msg)
	if err != nil {
		return nil, err
	}

	if e, ok := reply.(blockchain.Exception); ok {
		return nil, e.Err
	}

	return reply, nil
}

// SubmitTx takes a msgpack encoded transaction and replies with its hash in
// hex.
func (b *Bridge) SubmitTx(tx []byte, hash *string) error {
	b.logger.Debug("SubmitTx")

	var t blockchain.Transaction
	if err := t.Unmarshal(tx); err != nil {
		return err
	}

	reply, err := b.request(blockchain.PutTransactionRequest{Tx: t})
	if err != nil {
		return err
	}

	res, ok := reply.(blockchain.PutTransactionResponse)
	if !ok {
		return common.NewChainErr(common.Other, "unexpected reply %T", reply)
	}

	*hash = res.Hash.Hex()

	return nil
}

// GetAccount ...
func (b *Bridge) GetAccount(args AccountArgs, account *AccountReply) error {
	b.logger.WithField("id", args.ID).Debug("GetAccount")

	reply, err := b.request(blockchain.GetAccountRequest{ID: args.ID, Data: args.Data})
	if err != nil {
		return err
	}

	res, ok := reply.(blockchain.GetAccountResponse)
	if !ok {
		return common.NewChainErr(common.Other, "unexpected reply %T", reply)
	}

	*account = AccountReply{
		ID:     res.Account.ID,
		Assets: res.Account.Assets,
		Data:   res.Data,
	}
	if !res.Account.Contract.IsZero() {
		account.Contract = res.Account.Contract.Hex()
	}

	return nil
}

// GetNetworkID ...
func (b *Bridge) GetNetworkID(_ Empty, name *string) error {
	reply, err := b.request(blockchain.GetNetworkIDRequest{})
	if err != nil {
		return err
	}

	res, ok := reply.(blockchain.GetNetworkIDResponse)
	if !ok {
		return common.NewChainErr(common.Other, "unexpected reply %T", reply)
	}

	*name = res.Name

	return nil
}
