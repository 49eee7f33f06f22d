package p2p

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, conf Config, network string, sender *blockchain.RequestSender) *Service {
	key, err := keys.GenerateP2PKey()
	require.NoError(t, err)

	s := NewService(conf, key, network, sender, common.NewTestEntry(t, logrus.DebugLevel))
	t.Cleanup(func() { s.Stop() })

	return s
}

func TestOfflineService(t *testing.T) {
	ch := blockchain.NewChannel()
	defer ch.Close()

	s := newTestService(t, Config{Active: false}, "net", ch.Sender())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Empty(t, s.Addrs())

	tx := blockchain.NewTransaction(blockchain.TransactionData{Account: "a"})
	assert.NoError(t, s.Broadcast(context.Background(), tx))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestSetNetworkName(t *testing.T) {
	ch := blockchain.NewChannel()
	defer ch.Close()

	s := newTestService(t, Config{Active: false}, "bootstrap", ch.Sender())
	s.SetNetworkName("real")
	assert.Equal(t, "real", s.NetworkName())
	assert.Equal(t, "/real/txs", TopicName(s.NetworkName()))
}

func TestGossipForwardsTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("opens network hosts")
	}

	received := make(chan blockchain.Transaction, 16)

	ch := blockchain.NewChannel()
	defer ch.Close()
	go func() {
		for {
			select {
			case <-ch.Done():
				return
			case req := <-ch.Requests():
				if m, ok := req.Msg.(blockchain.PutTransactionRequest); ok {
					received <- m.Tx
					req.Reply(blockchain.PutTransactionResponse{Hash: m.Tx.Hash()})
				}
			}
		}
	}()

	conf := Config{Active: true, Addr: "127.0.0.1", Port: 0, RequestTimeout: time.Second}

	a := newTestService(t, conf, "gossip-net", blockchain.NewChannel().Sender())
	require.NoError(t, a.Start())
	require.NotEmpty(t, a.Addrs())

	conf.BootstrapAddr = a.Addrs()[0]
	b := newTestService(t, conf, "gossip-net", ch.Sender())
	b.SetAcceptBroadcast(true)
	require.NoError(t, b.Start())

	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	tx := blockchain.NewTransaction(blockchain.TransactionData{
		Account: "alice",
		Network: "gossip-net",
		Method:  "transfer",
		Nonce:   []byte{1},
	})
	require.NoError(t, tx.Sign(key))

	timeout := time.After(20 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case got := <-received:
			assert.True(t, got.Hash().Equal(tx.Hash()))
			return
		case <-ticker.C:
			require.NoError(t, a.Broadcast(context.Background(), tx))
		case <-timeout:
			t.Fatal("gossiped transaction not forwarded")
		}
	}
}

// fakeEngine serves the block channel for the p2p service: it keeps the
// transactions it is handed and streams their hashes to the subscriber.
type fakeEngine struct {
	ch *blockchain.Channel

	mu         sync.Mutex
	txs        map[string]blockchain.Transaction
	subscriber *blockchain.Request

	subscribed chan struct{}
	put        chan blockchain.Transaction
}

func newFakeEngine(t *testing.T) *fakeEngine {
	f := &fakeEngine{
		ch:         blockchain.NewChannel(),
		txs:        make(map[string]blockchain.Transaction),
		subscribed: make(chan struct{}, 1),
		put:        make(chan blockchain.Transaction, 16),
	}
	t.Cleanup(f.ch.Close)
	go f.serve()
	return f
}

func (f *fakeEngine) serve() {
	for {
		select {
		case <-f.ch.Done():
			return
		case req := <-f.ch.Requests():
			f.handle(req)
		}
	}
}

func (f *fakeEngine) handle(req blockchain.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch m := req.Msg.(type) {
	case blockchain.SubscribeRequest:
		r := req
		f.subscriber = &r
		select {
		case f.subscribed <- struct{}{}:
		default:
		}
	case blockchain.PutTransactionRequest:
		f.txs[m.Tx.Hash().Hex()] = m.Tx
		select {
		case f.put <- m.Tx:
		default:
		}
		req.Reply(blockchain.PutTransactionResponse{Hash: m.Tx.Hash()})
		f.notifyLocked(m.Tx.Hash())
	case blockchain.GetTransactionRequest:
		tx, ok := f.txs[m.Hash.Hex()]
		if !ok {
			req.Reply(blockchain.Exception{Err: common.NewChainErr(common.ResourceNotFound, "%s", m.Hash.Hex())})
			return
		}
		req.Reply(blockchain.GetTransactionResponse{Tx: tx})
	}
}

// submit stands for a transaction accepted through REST or the bridge.
func (f *fakeEngine) submit(tx blockchain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[tx.Hash().Hex()] = tx
	f.notifyLocked(tx.Hash())
}

func (f *fakeEngine) notifyLocked(hash crypto.Hash) {
	if f.subscriber != nil {
		f.subscriber.Reply(blockchain.TransactionEvent{Hash: hash})
	}
}

func signedTx(t *testing.T, network string) blockchain.Transaction {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	tx := blockchain.NewTransaction(blockchain.TransactionData{
		Account: "alice",
		Network: network,
		Method:  "transfer",
		Nonce:   []byte{2},
	})
	require.NoError(t, tx.Sign(key))

	return *tx
}

func TestRelaysLocallyAcceptedTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("opens network hosts")
	}

	origin := newFakeEngine(t)
	remote := newFakeEngine(t)

	conf := Config{Active: true, Addr: "127.0.0.1", Port: 0, RequestTimeout: time.Second}

	a := newTestService(t, conf, "relay-net", origin.ch.Sender())
	require.NoError(t, a.Start())

	conf.BootstrapAddr = a.Addrs()[0]
	b := newTestService(t, conf, "relay-net", remote.ch.Sender())
	b.SetAcceptBroadcast(true)
	require.NoError(t, b.Start())

	for _, f := range []*fakeEngine{origin, remote} {
		select {
		case <-f.subscribed:
		case <-time.After(10 * time.Second):
			t.Fatal("p2p service did not subscribe to transactions")
		}
	}

	tx := signedTx(t, "relay-net")

	timeout := time.After(20 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case got := <-remote.put:
			assert.True(t, got.Hash().Equal(tx.Hash()))

			// Received from the topic, so never published back.
			assert.True(t, b.gossiped.Contains(tx.Hash().Hex()))
			assert.False(t, a.gossiped.Contains(tx.Hash().Hex()))
			return
		case <-ticker.C:
			// The mesh takes a while to form; repeated events are published
			// again.
			origin.submit(tx)
		case <-timeout:
			t.Fatal("submitted transaction not relayed")
		}
	}
}

func TestStopWhileForwardingToStoppedEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("opens network hosts")
	}

	// The engine takes the first transaction and then stops serving, without
	// replying.
	ch := blockchain.NewChannel()
	defer ch.Close()

	taken := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch.Done():
				return
			case req := <-ch.Requests():
				if _, ok := req.Msg.(blockchain.PutTransactionRequest); ok {
					close(taken)
					return
				}
			}
		}
	}()

	conf := Config{Active: true, Addr: "127.0.0.1", Port: 0}

	a := newTestService(t, conf, "stop-net", blockchain.NewChannel().Sender())
	require.NoError(t, a.Start())

	conf.BootstrapAddr = a.Addrs()[0]
	b := newTestService(t, conf, "stop-net", ch.Sender())
	b.SetAcceptBroadcast(true)
	require.NoError(t, b.Start())

	tx := signedTx(t, "stop-net")

	timeout := time.After(20 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-taken:
			break wait
		case <-ticker.C:
			require.NoError(t, a.Broadcast(context.Background(), &tx))
		case <-timeout:
			t.Fatal("gossiped transaction not forwarded")
		}
	}

	stopped := make(chan error, 1)
	go func() {
		stopped <- b.Stop()
	}()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Stop blocked on a pending forward")
	}

	assert.False(t, b.IsRunning())
}
