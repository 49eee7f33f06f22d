package blockchain

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/warden/src/common"
)

func (s *BlockService) handle(req Request, st runState) {
	switch msg := req.Msg.(type) {
	case GetAccountRequest:
		req.Reply(s.getAccount(msg))
	case SubscribeRequest:
		s.subscribe(req, msg)
	case UnsubscribeRequest:
		s.unsubscribe(msg)
	case GetBlockRequest:
		req.Reply(s.getBlock(msg))
	case PutTransactionRequest:
		req.Reply(s.putTransaction(msg, st))
	case GetTransactionRequest:
		req.Reply(s.getTransaction(msg))
	case GetReceiptRequest:
		req.Reply(s.getReceipt(msg))
	case GetNetworkIDRequest:
		req.Reply(GetNetworkIDResponse{Name: st.conf.Network})
	case GetCoreStatsRequest:
		req.Reply(s.getCoreStats())
	case GetSeedRequest:
		req.Reply(GetSeedResponse{Seed: s.seed.Value()})
	default:
		s.logger.WithField("type", fmt.Sprintf("%T", msg)).Warn("Unexpected message")
		req.Reply(Exception{Err: common.NewChainErr(common.Other, "unexpected message")})
	}
}

func (s *BlockService) getAccount(msg GetAccountRequest) Message {
	acc, err := s.db.LoadAccount(msg.ID)
	if err != nil {
		return exception(err)
	}

	data := make([][]byte, len(msg.Data))
	for i, key := range msg.Data {
		value, err := s.db.LoadAccountData(msg.ID, key)
		if err != nil && !common.IsChainErr(err, common.ResourceNotFound) {
			return exception(err)
		}
		data[i] = value
	}

	return GetAccountResponse{Account: *acc, Data: data}
}

func (s *BlockService) subscribe(req Request, msg SubscribeRequest) {
	if sub, ok := s.subs[msg.ID]; ok {
		sub.req = req
		sub.events |= msg.Events
		return
	}
	s.subs[msg.ID] = &subscriber{req: req, events: msg.Events}
	s.logger.WithField("id", msg.ID).Debug("Subscriber registered")
}

func (s *BlockService) unsubscribe(msg UnsubscribeRequest) {
	sub, ok := s.subs[msg.ID]
	if !ok {
		return
	}
	sub.events &^= msg.Events
	if sub.events == 0 {
		delete(s.subs, msg.ID)
		s.logger.WithField("id", msg.ID).Debug("Subscriber removed")
	}
}

func (s *BlockService) getBlock(msg GetBlockRequest) Message {
	raw, err := s.db.LoadBlock(msg.Height)
	if err != nil {
		return exception(err)
	}

	var block Block
	if err := block.Unmarshal(raw); err != nil {
		return exception(err)
	}

	return GetBlockResponse{Block: block}
}

func (s *BlockService) putTransaction(msg PutTransactionRequest, st runState) Message {
	tx := msg.Tx

	if tx.Data.Network != st.conf.Network {
		return exception(common.NewChainErr(common.MalformedData,
			"transaction for network %q, expected %q", tx.Data.Network, st.conf.Network))
	}

	if err := tx.Verify(); err != nil {
		return exception(err)
	}

	hash := tx.Hash()

	if _, err := s.db.LoadTransaction(hash.Hex()); err == nil {
		return exception(common.NewChainErr(common.DuplicatedConfirmedTx, "%s", hash.Hex()))
	}

	if _, ok := s.pool.add(tx, time.Now()); !ok {
		return exception(common.NewChainErr(common.Other, "duplicated unconfirmed transaction %s", hash.Hex()))
	}

	s.notify(EventTransaction, TransactionEvent{Hash: hash})

	return PutTransactionResponse{Hash: hash}
}

func (s *BlockService) getTransaction(msg GetTransactionRequest) Message {
	raw, err := s.db.LoadTransaction(msg.Hash.Hex())
	if err != nil {
		for _, tx := range s.pool.pending() {
			if tx.Hash().Equal(msg.Hash) {
				return GetTransactionResponse{Tx: tx}
			}
		}
		return exception(err)
	}

	var tx Transaction
	if err := tx.Unmarshal(raw); err != nil {
		return exception(err)
	}

	return GetTransactionResponse{Tx: tx}
}

func (s *BlockService) getReceipt(msg GetReceiptRequest) Message {
	raw, err := s.db.LoadReceipt(msg.Hash.Hex())
	if err != nil {
		return exception(err)
	}

	var rx Receipt
	if err := rx.Unmarshal(raw); err != nil {
		return exception(err)
	}

	return GetReceiptResponse{Receipt: rx}
}

func (s *BlockService) getCoreStats() Message {
	res := GetCoreStatsResponse{
		PoolHash: s.pool.hash(),
		PoolSize: s.pool.len(),
	}
	if s.lastBlock != nil {
		block := *s.lastBlock
		res.LastBlock = &block
	}
	return res
}
