package blockchain

import (
	"crypto/ecdsa"
	"errors"
	"sync"
	"time"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/mosaicnetworks/warden/src/validator"
	"github.com/mosaicnetworks/warden/src/wm"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// ErrServiceRunning is returned by the methods that require a stopped engine.
var ErrServiceRunning = errors.New("block service is running")

const (
	defaultTick    = 50 * time.Millisecond
	refusedBackoff = 1 * time.Second
)

// runState is the configuration a run of the engine loop works with. It cannot
// change while the loop runs.
type runState struct {
	conf           Config
	burnFuelMethod string
	predicate      validator.Predicate
}

type subscriber struct {
	req    Request
	events Event
}

// BlockService is the block engine.
type BlockService struct {
	sync.Mutex

	key       *ecdsa.PrivateKey
	accountID string

	conf           Config
	burnFuelMethod string
	predicate      validator.Predicate

	db   *store.DB
	vm   wm.Machine
	seed *SeedSource

	channel   *Channel
	pool      *pool
	subs      map[string]*subscriber
	lastBlock *Block
	nextCut   time.Time

	running *atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	closed  bool

	tick   time.Duration
	logger *logrus.Entry
}

// NewBlockService returns a stopped engine. The node starts as a validator of
// its own, placeholder, network: the predicate accepts everybody until a real
// one is installed.
func NewBlockService(key *ecdsa.PrivateKey,
	conf Config,
	db *store.DB,
	vm wm.Machine,
	seed *SeedSource,
	logger *logrus.Entry) (*BlockService, error) {

	s := &BlockService{
		key:       key,
		accountID: keys.AccountID(&key.PublicKey),
		conf:      conf,
		predicate: validator.Stub{Value: true},
		db:        db,
		vm:        vm,
		seed:      seed,
		channel:   NewChannel(),
		pool:      newPool(),
		subs:      make(map[string]*subscriber),
		running:   atomic.NewBool(false),
		tick:      defaultTick,
		logger:    logger,
	}

	height, ok, err := db.LastHeight()
	if err != nil {
		return nil, err
	}

	if ok {
		raw, err := db.LoadBlock(height)
		if err != nil {
			return nil, err
		}
		block := new(Block)
		if err := block.Unmarshal(raw); err != nil {
			return nil, err
		}
		s.lastBlock = block
	}

	return s, nil
}

// RequestChannel returns a sender to the engine. Senders stay valid across
// restarts.
func (s *BlockService) RequestChannel() *RequestSender {
	return s.channel.Sender()
}

// Start starts the engine loop. It is a no-op if the engine is already running
// or closed.
func (s *BlockService) Start() {
	s.Lock()
	defer s.Unlock()

	if s.closed || s.stopCh != nil {
		return
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running.Store(true)

	st := runState{
		conf:           s.conf,
		burnFuelMethod: s.burnFuelMethod,
		predicate:      s.predicate,
	}

	s.logger.WithFields(logrus.Fields{
		"network":   st.conf.Network,
		"threshold": st.conf.Threshold,
		"timeout":   st.conf.Timeout,
	}).Debug("Starting block service")

	go s.run(st, s.stopCh, s.doneCh)
}

// Stop stops the engine loop and waits for it to exit. Pending requests stay
// queued on the channel until the next Start.
func (s *BlockService) Stop() {
	s.Lock()
	defer s.Unlock()

	if s.stopCh == nil {
		return
	}

	close(s.stopCh)
	<-s.doneCh

	s.stopCh = nil
	s.doneCh = nil

	s.logger.Debug("Block service stopped")
}

// IsRunning ...
func (s *BlockService) IsRunning() bool {
	return s.running.Load()
}

// Close stops the engine for good and closes its request channel.
func (s *BlockService) Close() {
	s.Stop()

	s.Lock()
	defer s.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.channel.Close()
}

// SetBlockConfig replaces the network name, the block threshold and the block
// timeout.
func (s *BlockService) SetBlockConfig(network string, threshold int, timeout uint16) error {
	s.Lock()
	defer s.Unlock()

	if s.stopCh != nil {
		return ErrServiceRunning
	}

	s.conf = Config{Network: network, Threshold: threshold, Timeout: timeout}
	s.seed.SetNetwork(network)

	return nil
}

// SetBurnFuelMethod sets the service contract method called after every
// transaction to account for the fuel it burned. Empty disables it.
func (s *BlockService) SetBurnFuelMethod(method string) error {
	s.Lock()
	defer s.Unlock()

	if s.stopCh != nil {
		return ErrServiceRunning
	}

	s.burnFuelMethod = method

	return nil
}

// SetValidator installs the validator predicate.
func (s *BlockService) SetValidator(p validator.Predicate) error {
	s.Lock()
	defer s.Unlock()

	if s.stopCh != nil {
		return ErrServiceRunning
	}

	s.predicate = p

	return nil
}

// PutTxs seeds the pool with transactions, in order.
func (s *BlockService) PutTxs(txs []Transaction) error {
	s.Lock()
	defer s.Unlock()

	if s.stopCh != nil {
		return ErrServiceRunning
	}

	now := time.Now()
	for i, tx := range txs {
		if err := tx.Verify(); err != nil {
			return common.NewChainErr(common.InvalidSignature, "transaction %d: %v", i, err)
		}
		if _, ok := s.pool.add(tx, now); !ok {
			s.logger.WithField("index", i).Warn("Duplicated transaction skipped")
		}
	}

	return nil
}

// Config returns the current engine configuration.
func (s *BlockService) Config() Config {
	s.Lock()
	defer s.Unlock()
	return s.conf
}

// StoreConfigIntoDB persists the settings in the node configuration area.
func (s *BlockService) StoreConfigIntoDB(settings Settings) error {
	raw, err := settings.Marshal()
	if err != nil {
		return err
	}
	return s.db.StoreConfiguration(SettingsKey, raw)
}

// LoadConfigFromDB reads the settings persisted by StoreConfigIntoDB.
func (s *BlockService) LoadConfigFromDB() (Settings, error) {
	var settings Settings

	raw, err := s.db.LoadConfiguration(SettingsKey)
	if err != nil {
		return settings, err
	}

	err = settings.Unmarshal(raw)

	return settings, err
}

// StoreServiceAccount creates the service account bound to the given contract
// code. The account and the code are written in a single merge.
func (s *BlockService) StoreServiceAccount(bin []byte) error {
	hash := crypto.HashBytes(bin)

	return s.db.Update(func(f *store.Fork) error {
		if err := f.StoreAccount(store.NewAccount(ServiceAccountID, hash)); err != nil {
			return err
		}
		return f.StoreAccountData(ServiceAccountID, wm.CodeKey(hash), bin)
	})
}

// LiveValidator returns a predicate querying the service contract of the given
// network.
func (s *BlockService) LiveValidator(network string) validator.Predicate {
	return validator.NewLive(s.db, s.vm, s.seed, ServiceAccountID, network)
}

// IsValidator asks the installed predicate about an account.
func (s *BlockService) IsValidator(accountID string) (bool, error) {
	s.Lock()
	p := s.predicate
	s.Unlock()
	return p.IsValidator(accountID)
}

// AccountID is the account of this node.
func (s *BlockService) AccountID() string {
	return s.accountID
}

// DB ...
func (s *BlockService) DB() *store.DB {
	return s.db
}

// VM ...
func (s *BlockService) VM() wm.Machine {
	return s.vm
}

// Seed ...
func (s *BlockService) Seed() *SeedSource {
	return s.seed
}

func (s *BlockService) run(st runState, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		s.running.Store(false)
		close(done)
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.maybeCutBlock(st)

	for {
		select {
		case <-stop:
			return
		case <-s.channel.Done():
			return
		case req := <-s.channel.Requests():
			s.handle(req, st)
			s.maybeCutBlock(st)
		case <-ticker.C:
			s.maybeCutBlock(st)
		}
	}
}

func (s *BlockService) maybeCutBlock(st runState) {
	n := s.pool.len()
	if n == 0 {
		return
	}

	now := time.Now()
	if now.Before(s.nextCut) {
		return
	}

	threshold := st.conf.Threshold
	if threshold <= 0 {
		threshold = 1
	}

	oldest, _ := s.pool.oldest()
	timeout := time.Duration(st.conf.Timeout) * time.Second

	if n < threshold && now.Sub(oldest) < timeout {
		return
	}

	ok, err := st.predicate.IsValidator(s.accountID)
	if err != nil {
		s.logger.WithError(err).Warn("Validator check failed, block skipped")
		s.nextCut = now.Add(refusedBackoff)
		return
	}
	if !ok {
		s.logger.Debug("Not a validator, block skipped")
		s.nextCut = now.Add(refusedBackoff)
		return
	}

	s.executeBlock(s.pool.take(threshold), st)
}

func (s *BlockService) executeBlock(txs []pooledTx, st runState) {
	height := uint64(0)
	var prevHash, prevState crypto.Hash
	if s.lastBlock != nil {
		height = s.lastBlock.Data.Height + 1
		prevHash = s.lastBlock.Hash()
		prevState = s.lastBlock.Data.StateHash
	}

	seed := s.seed.Value()

	block := Block{}
	txHashes := make([]crypto.Hash, 0, len(txs))

	err := s.db.Update(func(f *store.Fork) error {
		rxHashes := make([]crypto.Hash, 0, len(txs))

		for i, ptx := range txs {
			rx := s.executeTx(f, ptx.tx, height, uint32(i), seed, st)

			txRaw, err := ptx.tx.Marshal()
			if err != nil {
				return err
			}
			rxRaw, err := rx.Marshal()
			if err != nil {
				return err
			}

			if err := f.StoreTransaction(ptx.hash.Hex(), txRaw); err != nil {
				return err
			}
			if err := f.StoreReceipt(ptx.hash.Hex(), rxRaw); err != nil {
				return err
			}

			txHashes = append(txHashes, ptx.hash)
			rxHashes = append(rxHashes, crypto.HashBytes(rxRaw))
		}

		rxsHash := merkleHash(rxHashes)

		block.Data = BlockData{
			Height:    height,
			Size:      uint32(len(txs)),
			PrevHash:  prevHash,
			TxsHash:   merkleHash(txHashes),
			RxsHash:   rxsHash,
			StateHash: crypto.HashBytes(append(append([]byte{}, prevState...), rxsHash...)),
			Timestamp: time.Now().Unix(),
		}

		if err := block.Sign(s.key); err != nil {
			return err
		}

		raw, err := block.Marshal()
		if err != nil {
			return err
		}

		return f.StoreBlock(height, raw)
	})

	if err != nil {
		s.logger.WithError(err).WithField("height", height).Error("Block execution failed")
		return
	}

	s.lastBlock = &block
	s.seed.Advance(prevHash, block.Data.TxsHash, block.Data.RxsHash)

	s.logger.WithFields(logrus.Fields{
		"height": height,
		"txs":    len(txs),
	}).Debug("Block committed")

	s.notify(EventBlock, GetBlockResponse{Block: block, Txs: txHashes})
}

func (s *BlockService) executeTx(f *store.Fork, tx Transaction, height uint64, index uint32, seed uint64, st runState) Receipt {
	rx := Receipt{Height: height, Index: index}

	fail := func(err error) Receipt {
		rx.Success = false
		rx.Returns = []byte(err.Error())
		return rx
	}

	acc, err := f.LoadAccount(tx.Data.Account)
	bind := false
	if common.IsChainErr(err, common.ResourceNotFound) {
		acc = store.NewAccount(tx.Data.Account, nil)
		bind = true
	} else if err != nil {
		return fail(err)
	}

	if !tx.Data.Contract.IsZero() {
		if acc.Contract.IsZero() {
			acc.Contract = tx.Data.Contract
			bind = true
		} else if !acc.Contract.Equal(tx.Data.Contract) {
			return fail(common.NewChainErr(common.MachineFault, "contract mismatch"))
		}
	}

	if acc.Contract.IsZero() {
		return fail(common.NewChainErr(common.ResourceNotFound, "account %s has no contract", acc.ID))
	}

	caller := tx.CallerID()
	ctx := wm.CallContext{
		Network: st.conf.Network,
		Owner:   acc.ID,
		Caller:  caller,
		Origin:  caller,
	}

	burned, res, err := s.vm.Call(f, ctx, acc.Contract, tx.Data.Method, tx.Data.Args, seed, tx.Data.FuelLimit)
	rx.BurnedFuel = burned

	if err == nil && bind {
		err = f.StoreAccount(acc)
	}

	if st.burnFuelMethod != "" {
		s.burnFuel(f, caller, burned, seed, st)
	}

	if err != nil {
		return fail(err)
	}

	rx.Success = true
	rx.Returns = res

	return rx
}

func (s *BlockService) burnFuel(f *store.Fork, account string, amount uint64, seed uint64, st runState) {
	svc, err := f.LoadAccount(ServiceAccountID)
	if err != nil {
		s.logger.WithError(err).Warn("Cannot burn fuel without service account")
		return
	}

	args, err := common.Marshal(wm.BurnFuelArgs{Account: account, Amount: amount})
	if err != nil {
		return
	}

	ctx := wm.CallContext{
		Network: st.conf.Network,
		Owner:   ServiceAccountID,
		Caller:  ServiceAccountID,
		Origin:  account,
	}

	if _, _, err := s.vm.Call(f, ctx, svc.Contract, st.burnFuelMethod, args, seed, wm.MaxFuel); err != nil {
		s.logger.WithError(err).WithField("method", st.burnFuelMethod).Warn("Burning fuel failed")
	}
}

func (s *BlockService) notify(ev Event, msg Message) {
	for id, sub := range s.subs {
		if sub.events&ev == 0 {
			continue
		}
		if !sub.req.Reply(msg) {
			s.logger.WithField("subscriber", id).Warn("Subscriber lagging, event dropped")
		}
	}
}
