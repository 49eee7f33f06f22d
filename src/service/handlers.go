package service

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/bootstrap"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/store"
)

const maxTxSize = 1 << 20

// Stats is the body of the stats endpoint.
type Stats struct {
	PoolHash  crypto.Hash       `json:"pool_hash"`
	PoolSize  int               `json:"pool_size"`
	LastBlock *blockchain.Block `json:"last_block"`
}

// Block is the body of the block endpoint.
type Block struct {
	Block blockchain.Block `json:"block"`
	Hash  crypto.Hash      `json:"hash"`
	Txs   []crypto.Hash    `json:"txs"`
}

// Submitted is the body returned by the submit endpoint.
type Submitted struct {
	Hash crypto.Hash `json:"hash"`
}

func (s *Service) request(r *http.Request, msg blockchain.Message) (blockchain.Message, error) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.sender.Request(ctx, msg)
	if err != nil {
		return nil, err
	}

	if e, ok := reply.(blockchain.Exception); ok {
		return nil, e.Err
	}

	return reply, nil
}

func (s *Service) fail(w http.ResponseWriter, err error, what string) {
	status := http.StatusInternalServerError

	var chainErr common.ChainErr
	switch {
	case errors.Is(err, blockchain.ErrChannelClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.As(err, &chainErr):
		switch chainErr.Kind {
		case common.ResourceNotFound:
			status = http.StatusNotFound
		case common.MalformedData, common.InvalidSignature, common.DuplicatedConfirmedTx:
			status = http.StatusBadRequest
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error(what)
	} else {
		s.logger.WithError(err).Debug(what)
	}

	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	reply, err := s.request(r, blockchain.GetCoreStatsRequest{})
	if err != nil {
		s.fail(w, err, "Retrieving stats")
		return
	}

	stats, ok := reply.(blockchain.GetCoreStatsResponse)
	if !ok {
		s.fail(w, errUnexpected(reply), "Retrieving stats")
		return
	}

	writeJSON(w, Stats{
		PoolHash:  stats.PoolHash,
		PoolSize:  stats.PoolSize,
		LastBlock: stats.LastBlock,
	})
}

// GetAccount ...
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, APIPrefix+"/account/")
	if id == "" {
		http.Error(w, "missing account id", http.StatusBadRequest)
		return
	}

	reply, err := s.request(r, blockchain.GetAccountRequest{ID: id})
	if err != nil {
		s.fail(w, err, "Retrieving account "+id)
		return
	}

	res, ok := reply.(blockchain.GetAccountResponse)
	if !ok {
		s.fail(w, errUnexpected(reply), "Retrieving account "+id)
		return
	}

	writeJSON(w, accountBody(res.Account))
}

type account struct {
	ID       string            `json:"id"`
	Assets   map[string][]byte `json:"assets"`
	Contract crypto.Hash       `json:"contract"`
}

func accountBody(a store.Account) account {
	return account{ID: a.ID, Assets: a.Assets, Contract: a.Contract}
}

// GetBlock ...
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimPrefix(r.URL.Path, APIPrefix+"/block/")

	height, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		s.logger.WithError(err).Debugf("Parsing block height parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply, err := s.request(r, blockchain.GetBlockRequest{Height: height})
	if err != nil {
		s.fail(w, err, "Retrieving block "+param)
		return
	}

	res, ok := reply.(blockchain.GetBlockResponse)
	if !ok {
		s.fail(w, errUnexpected(reply), "Retrieving block "+param)
		return
	}

	writeJSON(w, Block{Block: res.Block, Hash: res.Block.Hash(), Txs: res.Txs})
}

// SubmitTx takes a msgpack encoded transaction.
func (s *Service) SubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxTxSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var tx blockchain.Transaction
	if err := tx.Unmarshal(body); err != nil {
		s.fail(w, err, "Decoding transaction")
		return
	}

	reply, err := s.request(r, blockchain.PutTransactionRequest{Tx: tx})
	if err != nil {
		s.fail(w, err, "Submitting transaction")
		return
	}

	res, ok := reply.(blockchain.PutTransactionResponse)
	if !ok {
		s.fail(w, errUnexpected(reply), "Submitting transaction")
		return
	}

	writeJSON(w, Submitted{Hash: res.Hash})
}

// GetVisa ...
func (s *Service) GetVisa(w http.ResponseWriter, r *http.Request) {
	reply, err := s.request(r, blockchain.GetNetworkIDRequest{})
	if err != nil {
		s.fail(w, err, "Retrieving network id")
		return
	}

	network, ok := reply.(blockchain.GetNetworkIDResponse)
	if !ok {
		s.fail(w, errUnexpected(reply), "Retrieving network id")
		return
	}

	visa := bootstrap.Visa{
		NodeVersion:  s.info.NodeVersion,
		CoreVersion:  s.info.CoreVersion,
		NetworkName:  network.Name,
		AccountID:    s.info.AccountID,
		P2PAccountID: s.info.P2PAccountID,
	}
	if s.info.P2PAddrs != nil {
		visa.P2PAddrs = s.info.P2PAddrs()
	}

	writeJSON(w, visa)
}

// GetBootstrap serves the genesis bundle the node booted from.
func (s *Service) GetBootstrap(w http.ResponseWriter, r *http.Request) {
	data, err := ioutil.ReadFile(s.bootstrapPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "bootstrap file not available", http.StatusNotFound)
			return
		}
		s.fail(w, err, "Reading bootstrap file")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func errUnexpected(reply blockchain.Message) error {
	return common.NewChainErr(common.Other, "unexpected reply %T", reply)
}
