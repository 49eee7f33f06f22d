// Package p2p connects the node to its peers. Transactions are gossiped on a
// per-network topic and, when the network accepts broadcasts, forwarded to the
// block channel. Transactions accepted by the local engine from any other
// source are published on the topic.
package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/crypto"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const (
	dialTimeout = 10 * time.Second

	// SubscriberID is the id of the subscription to the transactions accepted
	// by the local engine.
	SubscriberID = "p2p"

	// gossipedCacheSize is the number of gossiped transaction hashes kept to
	// avoid publishing them back.
	gossipedCacheSize = 4096
)

// TopicName returns the gossip topic of the transactions of a network.
func TopicName(network string) string {
	return "/" + network + "/txs"
}

// Config ...
type Config struct {
	// Active is false when the node runs offline. The service then reports
	// itself running without opening a host.
	Active bool

	Addr          string
	Port          int
	BootstrapAddr string

	// RequestTimeout bounds the forwarding of a transaction to the block
	// channel.
	RequestTimeout time.Duration
}

// Service is the peer-to-peer service.
type Service struct {
	sync.Mutex

	conf   Config
	key    p2pcrypto.PrivKey
	sender *blockchain.RequestSender

	network         string
	acceptBroadcast *atomic.Bool

	// gossiped holds the hashes of the transactions received from peers.
	gossiped *lru.Cache[string, struct{}]

	host       host.Host
	topic      *pubsub.Topic
	sub        *pubsub.Subscription
	cancel     context.CancelFunc
	loopCancel context.CancelFunc
	loops      sync.WaitGroup

	running *atomic.Bool
	logger  *logrus.Entry
}

// NewService ...
func NewService(conf Config,
	key p2pcrypto.PrivKey,
	network string,
	sender *blockchain.RequestSender,
	logger *logrus.Entry) *Service {

	gossiped, _ := lru.New[string, struct{}](gossipedCacheSize)

	return &Service{
		conf:            conf,
		key:             key,
		sender:          sender,
		network:         network,
		acceptBroadcast: atomic.NewBool(false),
		gossiped:        gossiped,
		running:         atomic.NewBool(false),
		logger:          logger,
	}
}

// SetNetworkName sets the network whose topic is joined at the next Start.
func (s *Service) SetNetworkName(name string) {
	s.Lock()
	defer s.Unlock()
	s.network = name
}

// NetworkName ...
func (s *Service) NetworkName() string {
	s.Lock()
	defer s.Unlock()
	return s.network
}

// SetAcceptBroadcast decides whether gossiped transactions are forwarded to
// the block channel.
func (s *Service) SetAcceptBroadcast(accept bool) {
	s.acceptBroadcast.Store(accept)
}

// Start opens the host, joins the network topic and dials the bootstrap peer.
// A failed dial is only logged.
func (s *Service) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.running.Load() {
		return nil
	}

	if !s.conf.Active {
		s.logger.Info("Peer-to-peer service offline")
		s.running.Store(true)
		return nil
	}

	listen := fmt.Sprintf("/ip4/%s/tcp/%d", s.conf.Addr, s.conf.Port)

	h, err := libp2p.New(
		libp2p.Identity(s.key),
		libp2p.ListenAddrStrings(listen),
	)
	if err != nil {
		return fmt.Errorf("creating p2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		cancel()
		h.Close()
		return fmt.Errorf("creating gossipsub: %w", err)
	}

	topic, err := ps.Join(TopicName(s.network))
	if err != nil {
		cancel()
		h.Close()
		return fmt.Errorf("joining topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		cancel()
		h.Close()
		return fmt.Errorf("subscribing topic: %w", err)
	}

	loopCtx, loopCancel := context.WithCancel(ctx)

	s.host = h
	s.topic = topic
	s.sub = sub
	s.cancel = cancel
	s.loopCancel = loopCancel
	s.running.Store(true)

	s.logger.WithFields(logrus.Fields{
		"id":    h.ID().String(),
		"addrs": s.addrs(),
		"topic": topic.String(),
	}).Info("Peer-to-peer service started")

	if s.conf.BootstrapAddr != "" {
		s.dial(ctx, s.conf.BootstrapAddr)
	}

	s.loops.Add(2)
	go s.readLoop(loopCtx, h.ID(), sub)
	go s.relayLoop(loopCtx, topic)

	return nil
}

func (s *Service) dial(ctx context.Context, addr string) {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		s.logger.WithError(err).WithField("addr", addr).Warn("Invalid bootstrap peer address")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := s.host.Connect(ctx, *info); err != nil {
		s.logger.WithError(err).WithField("peer", info.ID.String()).Warn("Dialing bootstrap peer")
		return
	}

	s.logger.WithField("peer", info.ID.String()).Debug("Connected to bootstrap peer")
}

func (s *Service) readLoop(ctx context.Context, self peer.ID, sub *pubsub.Subscription) {
	defer s.loops.Done()

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}

		if msg.ReceivedFrom == self {
			continue
		}

		if !s.acceptBroadcast.Load() {
			continue
		}

		s.forward(ctx, msg.Data)
	}
}

func (s *Service) forward(ctx context.Context, data []byte) {
	var tx blockchain.Transaction
	if err := tx.Unmarshal(data); err != nil {
		s.logger.WithError(err).Debug("Dropping malformed gossiped transaction")
		return
	}

	// Recorded before the engine sees it, so the relay never publishes it back.
	s.gossiped.Add(tx.Hash().Hex(), struct{}{})

	if s.conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.conf.RequestTimeout)
		defer cancel()
	}

	reply, err := s.sender.Request(ctx, blockchain.PutTransactionRequest{Tx: tx})
	if err != nil {
		s.logger.WithError(err).Debug("Forwarding gossiped transaction")
		return
	}

	if e, ok := reply.(blockchain.Exception); ok {
		s.logger.WithError(e.Err).Debug("Gossiped transaction refused")
	}
}

// Broadcast gossips a transaction to the peers of the network.
func (s *Service) Broadcast(ctx context.Context, tx *blockchain.Transaction) error {
	s.Lock()
	topic := s.topic
	s.Unlock()

	if topic == nil {
		return nil
	}

	data, err := tx.Marshal()
	if err != nil {
		return err
	}

	return topic.Publish(ctx, data)
}

// relayLoop publishes the transactions accepted by the local engine that did
// not come from the topic. The subscription is left in place on exit: a new
// one with the same id replaces it.
func (s *Service) relayLoop(ctx context.Context, topic *pubsub.Topic) {
	defer s.loops.Done()

	recv, err := s.sender.Send(ctx, blockchain.SubscribeRequest{
		ID:     SubscriberID,
		Events: blockchain.EventTransaction,
	})
	if err != nil {
		s.logger.WithError(err).Debug("Subscribing to transactions")
		return
	}

	for {
		msg, err := recv.Recv(ctx)
		if err != nil {
			return
		}

		ev, ok := msg.(blockchain.TransactionEvent)
		if !ok {
			continue
		}

		if s.gossiped.Contains(ev.Hash.Hex()) {
			continue
		}

		if err := s.relay(ctx, topic, ev.Hash); err != nil {
			s.logger.WithError(err).WithField("tx", ev.Hash.Hex()).Debug("Relaying transaction")
		}
	}
}

func (s *Service) relay(ctx context.Context, topic *pubsub.Topic, hash crypto.Hash) error {
	if s.conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.conf.RequestTimeout)
		defer cancel()
	}

	reply, err := s.sender.Request(ctx, blockchain.GetTransactionRequest{Hash: hash})
	if err != nil {
		return err
	}

	switch m := reply.(type) {
	case blockchain.GetTransactionResponse:
		data, err := m.Tx.Marshal()
		if err != nil {
			return err
		}
		return topic.Publish(ctx, data)
	case blockchain.Exception:
		return m.Err
	default:
		return fmt.Errorf("unexpected reply %T", reply)
	}
}

// Addrs returns the full multiaddresses of the host, empty when offline.
func (s *Service) Addrs() []string {
	s.Lock()
	defer s.Unlock()
	return s.addrs()
}

func (s *Service) addrs() []string {
	if s.host == nil {
		return nil
	}

	self, err := ma.NewMultiaddr("/p2p/" + s.host.ID().String())
	if err != nil {
		return nil
	}

	res := []string{}
	for _, a := range s.host.Addrs() {
		res = append(res, a.Encapsulate(self).String())
	}

	return res
}

// Stop leaves the topic and closes the host. The loops are cancelled first,
// so a forward to a stopped engine does not hold it up.
func (s *Service) Stop() error {
	s.Lock()

	if !s.running.Load() {
		s.Unlock()
		return nil
	}
	s.running.Store(false)

	h, topic, sub := s.host, s.topic, s.sub
	cancel, loopCancel := s.cancel, s.loopCancel

	s.host = nil
	s.topic = nil
	s.sub = nil
	s.cancel = nil
	s.loopCancel = nil

	s.Unlock()

	if h == nil {
		return nil
	}

	loopCancel()
	sub.Cancel()
	s.loops.Wait()

	if err := topic.Close(); err != nil {
		s.logger.WithError(err).Debug("Closing topic")
	}
	cancel()

	return h.Close()
}

// IsRunning ...
func (s *Service) IsRunning() bool {
	return s.running.Load()
}
