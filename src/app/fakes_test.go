package app

import (
	"sync"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/validator"
)

// liveMarker stands for the predicate built by LiveValidator.
type liveMarker struct {
	network string
}

func (liveMarker) IsValidator(string) (bool, error) {
	return true, nil
}

// fakeEngine records every call and serves the block channel from its state.
// Committing a block is driven by the test, or happens on Start when the pool
// is not empty and no gate is set.
type fakeEngine struct {
	mu sync.Mutex

	ch      *blockchain.Channel
	running bool

	calls      []string
	violations []string

	conf       blockchain.Config
	burnMethod string
	predicate  validator.Predicate
	pool       []blockchain.Transaction
	seeded     []blockchain.Transaction

	accountPresent  bool
	serviceSettings []byte
	dbSettings      *blockchain.Settings
	lastBlock       *blockchain.Block
	subscriber      *blockchain.Request

	gate       chan struct{}
	subscribed chan struct{}

	starts int
	stops  int
	closes int
}

func newFakeEngine() *fakeEngine {
	f := &fakeEngine{
		ch:         blockchain.NewChannel(),
		predicate:  validator.Stub{Value: true},
		subscribed: make(chan struct{}, 1),
	}
	go f.serve()
	return f
}

func (f *fakeEngine) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) mutating(call string) {
	f.record(call)
	if f.running {
		f.violations = append(f.violations, call)
	}
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
	case blockchain.GetAccountRequest:
		if !f.accountPresent {
			req.Reply(blockchain.Exception{Err: common.NewChainErr(common.ResourceNotFound, "%s", m.ID)})
			return
		}
		data := make([][]byte, len(m.Data))
		for i, k := range m.Data {
			if k == blockchain.SettingsKey {
				data[i] = f.serviceSettings
			}
		}
		req.Reply(blockchain.GetAccountResponse{Data: data})
	case blockchain.GetCoreStatsRequest:
		req.Reply(blockchain.GetCoreStatsResponse{PoolSize: len(f.pool), LastBlock: f.lastBlock})
	case blockchain.GetNetworkIDRequest:
		req.Reply(blockchain.GetNetworkIDResponse{Name: f.conf.Network})
	case blockchain.SubscribeRequest:
		r := req
		f.subscriber = &r
		select {
		case f.subscribed <- struct{}{}:
		default:
		}
	case blockchain.UnsubscribeRequest:
		f.subscriber = nil
	default:
		req.Reply(blockchain.Exception{Err: common.NewChainErr(common.Other, "unexpected %T", m)})
	}
}

// commit cuts a block from the pool and notifies the subscriber.
func (f *fakeEngine) commit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitLocked()
}

func (f *fakeEngine) commitLocked() {
	height := uint64(0)
	if f.lastBlock != nil {
		height = f.lastBlock.Data.Height + 1
	}

	block := &blockchain.Block{Data: blockchain.BlockData{
		Height: height,
		Size:   uint32(len(f.pool)),
	}}
	f.lastBlock = block
	f.pool = nil

	if f.subscriber != nil {
		f.subscriber.Reply(blockchain.GetBlockResponse{Block: *block})
	}
}

func (f *fakeEngine) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("Start")
	f.starts++
	f.running = true

	if len(f.pool) == 0 {
		return
	}

	if f.gate == nil {
		f.commitLocked()
		return
	}

	gate := f.gate
	go func() {
		<-gate
		f.commit()
	}()
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Stop")
	f.stops++
	f.running = false
}

func (f *fakeEngine) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeEngine) Close() {
	f.mu.Lock()
	f.record("Close")
	f.closes++
	f.running = false
	f.mu.Unlock()

	f.ch.Close()
}

func (f *fakeEngine) RequestChannel() *blockchain.RequestSender {
	return f.ch.Sender()
}

func (f *fakeEngine) SetBlockConfig(network string, threshold int, timeout uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutating("SetBlockConfig")
	f.conf = blockchain.Config{Network: network, Threshold: threshold, Timeout: timeout}
	return nil
}

func (f *fakeEngine) SetBurnFuelMethod(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutating("SetBurnFuelMethod")
	f.burnMethod = method
	return nil
}

func (f *fakeEngine) SetValidator(p validator.Predicate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutating("SetValidator")
	f.predicate = p
	return nil
}

func (f *fakeEngine) PutTxs(txs []blockchain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutating("PutTxs")
	f.pool = append(f.pool, txs...)
	f.seeded = append(f.seeded, txs...)
	return nil
}

func (f *fakeEngine) StoreConfigIntoDB(settings blockchain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StoreConfigIntoDB")
	s := settings
	f.dbSettings = &s
	return nil
}

func (f *fakeEngine) LoadConfigFromDB() (blockchain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LoadConfigFromDB")
	if f.dbSettings == nil {
		return blockchain.Settings{}, common.NewChainErr(common.ResourceNotFound, "settings")
	}
	return *f.dbSettings, nil
}

func (f *fakeEngine) StoreServiceAccount(bin []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutating("StoreServiceAccount")
	f.accountPresent = true
	return nil
}

func (f *fakeEngine) LiveValidator(network string) validator.Predicate {
	return liveMarker{network: network}
}

// engineState is a copy of the recorded state of a fakeEngine.
type engineState struct {
	running    bool
	calls      []string
	violations []string
	conf       blockchain.Config
	burnMethod string
	predicate  validator.Predicate
	pool       []blockchain.Transaction
	seeded     []blockchain.Transaction
	dbSettings *blockchain.Settings
	starts     int
	stops      int
	closes     int
}

func (f *fakeEngine) snapshot() engineState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engineState{
		running:    f.running,
		calls:      append([]string(nil), f.calls...),
		violations: append([]string(nil), f.violations...),
		conf:       f.conf,
		burnMethod: f.burnMethod,
		predicate:  f.predicate,
		pool:       append([]blockchain.Transaction(nil), f.pool...),
		seeded:     append([]blockchain.Transaction(nil), f.seeded...),
		dbSettings: f.dbSettings,
		starts:     f.starts,
		stops:      f.stops,
		closes:     f.closes,
	}
}

// fakeService counts lifecycle calls.
type fakeService struct {
	mu sync.Mutex

	running  bool
	starts   int
	stops    int
	startErr error
}

func (s *fakeService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	return nil
}

func (s *fakeService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.running = false
	return nil
}

func (s *fakeService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// crash makes the service report itself not running.
func (s *fakeService) crash() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *fakeService) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

type fakePeer struct {
	fakeService

	network string
	accept  bool
}

func (p *fakePeer) SetNetworkName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.network = name
}

func (p *fakePeer) SetAcceptBroadcast(accept bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accept = accept
}

func (p *fakePeer) networkName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.network
}
