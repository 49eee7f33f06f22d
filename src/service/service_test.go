package service

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/bootstrap"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine answers block channel requests from canned data.
type fakeEngine struct {
	ch        *blockchain.Channel
	accounts  map[string]store.Account
	blocks    map[uint64]blockchain.Block
	submitted chan blockchain.Transaction
	stopped   chan struct{}
}

func newFakeEngine(t *testing.T) *fakeEngine {
	f := &fakeEngine{
		ch:        blockchain.NewChannel(),
		accounts:  make(map[string]store.Account),
		blocks:    make(map[uint64]blockchain.Block),
		submitted: make(chan blockchain.Transaction, 1),
		stopped:   make(chan struct{}),
	}
	go f.serve()
	t.Cleanup(f.ch.Close)
	return f
}

func (f *fakeEngine) serve() {
	defer close(f.stopped)
	for {
		select {
		case <-f.ch.Done():
			return
		case req := <-f.ch.Requests():
			req.Reply(f.handle(req.Msg))
		}
	}
}

func (f *fakeEngine) handle(msg blockchain.Message) blockchain.Message {
	notFound := blockchain.Exception{Err: common.NewChainErr(common.ResourceNotFound, "")}

	switch m := msg.(type) {
	case blockchain.GetCoreStatsRequest:
		block := f.blocks[1]
		return blockchain.GetCoreStatsResponse{
			PoolHash:  crypto.HashBytes([]byte("pool")),
			PoolSize:  4,
			LastBlock: &block,
		}
	case blockchain.GetAccountRequest:
		account, ok := f.accounts[m.ID]
		if !ok {
			return notFound
		}
		return blockchain.GetAccountResponse{Account: account}
	case blockchain.GetBlockRequest:
		block, ok := f.blocks[m.Height]
		if !ok {
			return notFound
		}
		return blockchain.GetBlockResponse{Block: block}
	case blockchain.PutTransactionRequest:
		if err := m.Tx.Verify(); err != nil {
			return blockchain.Exception{Err: err.(common.ChainErr)}
		}
		f.submitted <- m.Tx
		return blockchain.PutTransactionResponse{Hash: m.Tx.Hash()}
	case blockchain.GetNetworkIDRequest:
		return blockchain.GetNetworkIDResponse{Name: "test-network"}
	default:
		return blockchain.Exception{Err: common.NewChainErr(common.Other, "unexpected")}
	}
}

func newTestService(t *testing.T, f *fakeEngine, bootstrapPath string) (*Service, *httptest.Server) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "test",
	}))

	s := NewService("127.0.0.1:0",
		f.ch.Sender(),
		NodeInfo{
			NodeVersion:  "0.2.7",
			CoreVersion:  "0.2.7",
			AccountID:    "account",
			P2PAccountID: "peer",
			P2PAddrs:     func() []string { return []string{"/ip4/127.0.0.1/tcp/4001"} },
		},
		bootstrapPath,
		reg,
		time.Second,
		common.NewTestEntry(t, logrus.DebugLevel))

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	return s, server
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	return resp
}

func TestGetStats(t *testing.T) {
	f := newFakeEngine(t)
	f.blocks[1] = blockchain.Block{Data: blockchain.BlockData{Height: 1, Size: 2}}
	_, server := newTestService(t, f, "")

	var stats Stats
	resp := getJSON(t, server.URL+APIPrefix+"/stats", &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	assert.Equal(t, 4, stats.PoolSize)
	assert.True(t, stats.PoolHash.Equal(crypto.HashBytes([]byte("pool"))))
	require.NotNil(t, stats.LastBlock)
	assert.Equal(t, uint64(1), stats.LastBlock.Data.Height)
}

func TestGetAccount(t *testing.T) {
	f := newFakeEngine(t)
	contract := crypto.HashBytes([]byte("code"))
	f.accounts["alice"] = *store.NewAccount("alice", contract)
	_, server := newTestService(t, f, "")

	var body struct {
		ID       string      `json:"id"`
		Contract crypto.Hash `json:"contract"`
	}
	resp := getJSON(t, server.URL+APIPrefix+"/account/alice", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body.ID)
	assert.True(t, body.Contract.Equal(contract))

	resp = getJSON(t, server.URL+APIPrefix+"/account/bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetBlock(t *testing.T) {
	f := newFakeEngine(t)
	block := blockchain.Block{Data: blockchain.BlockData{Height: 3}}
	f.blocks[3] = block
	_, server := newTestService(t, f, "")

	var body Block
	resp := getJSON(t, server.URL+APIPrefix+"/block/3", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(3), body.Block.Data.Height)
	assert.True(t, body.Hash.Equal(block.Hash()))

	resp = getJSON(t, server.URL+APIPrefix+"/block/9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, server.URL+APIPrefix+"/block/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTx(t *testing.T) {
	f := newFakeEngine(t)
	_, server := newTestService(t, f, "")

	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	tx := blockchain.NewTransaction(blockchain.TransactionData{
		Account:   "alice",
		FuelLimit: 100,
		Nonce:     []byte{1, 2, 3},
		Network:   "test-network",
		Method:    "transfer",
	})
	require.NoError(t, tx.Sign(key))

	raw, err := tx.Marshal()
	require.NoError(t, err)

	resp, err := http.Post(server.URL+APIPrefix+"/submit", "application/msgpack", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body Submitted
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Hash.Equal(tx.Hash()))

	submitted := <-f.submitted
	assert.Equal(t, tx.Signature, submitted.Signature)

	resp2, err := http.Post(server.URL+APIPrefix+"/submit", "application/msgpack", bytes.NewReader([]byte{0xc1}))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp3, err := http.Get(server.URL + APIPrefix + "/submit")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)
}

func TestGetVisa(t *testing.T) {
	f := newFakeEngine(t)
	_, server := newTestService(t, f, "")

	var visa bootstrap.Visa
	resp := getJSON(t, server.URL+APIPrefix+"/visa", &visa)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "test-network", visa.NetworkName)
	assert.Equal(t, "account", visa.AccountID)
	assert.Equal(t, "peer", visa.P2PAccountID)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001"}, visa.P2PAddrs)
}

func TestGetBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.bin")
	require.NoError(t, ioutil.WriteFile(path, []byte("bundle"), 0600))

	f := newFakeEngine(t)
	_, server := newTestService(t, f, path)

	resp, err := http.Get(server.URL + APIPrefix + "/bootstrap")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("bundle"), data)

	_, missing := newTestService(t, f, filepath.Join(t.TempDir(), "none.bin"))
	resp2 := getJSON(t, missing.URL+APIPrefix+"/bootstrap", nil)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestMetrics(t *testing.T) {
	f := newFakeEngine(t)
	_, server := newTestService(t, f, "")

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_counter")
}

func TestClosedChannel(t *testing.T) {
	f := newFakeEngine(t)
	_, server := newTestService(t, f, "")

	f.ch.Close()
	<-f.stopped

	resp := getJSON(t, server.URL+APIPrefix+"/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	f := newFakeEngine(t)
	s, _ := newTestService(t, f, "")

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	var visa bootstrap.Visa
	resp := getJSON(t, "http://"+s.Addr()+APIPrefix+"/visa", &visa)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	_, err := http.Get("http://" + s.Addr() + APIPrefix + "/visa")
	assert.Error(t, err)
}
