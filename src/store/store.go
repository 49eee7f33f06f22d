package store

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/sirupsen/logrus"
)

// DB is the node database.
type DB struct {
	mu     sync.RWMutex
	db     *badger.DB
	path   string
	logger *logrus.Entry
}

// Open opens, or creates, the database in the given directory.
func Open(path string, logger *logrus.Entry) (*DB, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = logger.WithField("component", "badger")

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, common.NewChainErr(common.DatabaseFault, "opening %s: %v", path, err)
	}

	return &DB{
		db:     handle,
		path:   path,
		logger: logger,
	}, nil
}

// Close closes the underlying Badger database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// Path ...
func (d *DB) Path() string {
	return d.path
}

// Fork returns an isolated read-write view of the database. The caller must
// either merge it with Merge or throw it away with Discard.
func (d *DB) Fork() *Fork {
	return &Fork{txn: d.db.NewTransaction(true)}
}

// Merge atomically applies the changes staged in the fork.
func (d *DB) Merge(f *Fork) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return f.commit()
}

// Update runs fn against a new fork and merges it if fn succeeds. The write
// lock is held for the whole cycle. The fork is discarded when fn fails.
func (d *DB) Update(fn func(f *Fork) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := d.Fork()
	defer f.Discard()

	if err := fn(f); err != nil {
		return err
	}

	return f.commit()
}

func (d *DB) get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var res []byte
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		res, err = txnGet(txn, key)
		return err
	})

	return res, err
}

// LoadAccount ...
func (d *DB) LoadAccount(id string) (*Account, error) {
	return loadAccount(d.get, id)
}

// LoadAccountData ...
func (d *DB) LoadAccountData(id string, key string) ([]byte, error) {
	return d.get(accountDataKey(id, key))
}

// LoadConfiguration ...
func (d *DB) LoadConfiguration(key string) ([]byte, error) {
	return d.get(configKey(key))
}

// StoreConfiguration writes a single configuration entry outside of any
// block execution.
func (d *DB) StoreConfiguration(key string, value []byte) error {
	return d.Update(func(f *Fork) error {
		return f.StoreConfiguration(key, value)
	})
}

// LoadBlock returns the encoded block at the given height.
func (d *DB) LoadBlock(height uint64) ([]byte, error) {
	return d.get(blockKey(height))
}

// LastHeight returns the height of the last stored block. The boolean is false
// when no block was ever stored.
func (d *DB) LastHeight() (uint64, bool, error) {
	raw, err := d.get(lastBlockKey)
	if common.IsChainErr(err, common.ResourceNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// LoadTransaction ...
func (d *DB) LoadTransaction(hash string) ([]byte, error) {
	return d.get(txKey(hash))
}

// LoadReceipt ...
func (d *DB) LoadReceipt(hash string) ([]byte, error) {
	return d.get(receiptKey(hash))
}

// Fork is a read-write view of the database backed by a Badger transaction.
// Reads observe the writes staged in the same fork.
type Fork struct {
	txn  *badger.Txn
	done bool
}

// Discard drops the staged changes. It is a no-op on a merged fork.
func (f *Fork) Discard() {
	if f.done {
		return
	}
	f.done = true
	f.txn.Discard()
}

func (f *Fork) commit() error {
	if f.done {
		return common.NewChainErr(common.DatabaseFault, "fork already closed")
	}
	f.done = true
	if err := f.txn.Commit(); err != nil {
		return common.NewChainErr(common.DatabaseFault, "merging fork: %v", err)
	}
	return nil
}

func (f *Fork) get(key []byte) ([]byte, error) {
	return txnGet(f.txn, key)
}

func (f *Fork) set(key []byte, value []byte) error {
	if err := f.txn.Set(key, value); err != nil {
		return common.NewChainErr(common.DatabaseFault, "%v", err)
	}
	return nil
}

// LoadAccount ...
func (f *Fork) LoadAccount(id string) (*Account, error) {
	return loadAccount(f.get, id)
}

// StoreAccount ...
func (f *Fork) StoreAccount(acc *Account) error {
	raw, err := acc.Marshal()
	if err != nil {
		return err
	}
	return f.set(accountKey(acc.ID), raw)
}

// LoadAccountData ...
func (f *Fork) LoadAccountData(id string, key string) ([]byte, error) {
	return f.get(accountDataKey(id, key))
}

// StoreAccountData ...
func (f *Fork) StoreAccountData(id string, key string, value []byte) error {
	return f.set(accountDataKey(id, key), value)
}

// LoadConfiguration ...
func (f *Fork) LoadConfiguration(key string) ([]byte, error) {
	return f.get(configKey(key))
}

// StoreConfiguration ...
func (f *Fork) StoreConfiguration(key string, value []byte) error {
	return f.set(configKey(key), value)
}

// StoreBlock stores an encoded block and makes it the last one.
func (f *Fork) StoreBlock(height uint64, block []byte) error {
	if err := f.set(blockKey(height), block); err != nil {
		return err
	}
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, height)
	return f.set(lastBlockKey, raw)
}

// StoreTransaction ...
func (f *Fork) StoreTransaction(hash string, tx []byte) error {
	return f.set(txKey(hash), tx)
}

// StoreReceipt ...
func (f *Fork) StoreReceipt(hash string, receipt []byte) error {
	return f.set(receiptKey(hash), receipt)
}

func loadAccount(get func([]byte) ([]byte, error), id string) (*Account, error) {
	raw, err := get(accountKey(id))
	if err != nil {
		return nil, err
	}

	acc := new(Account)
	if err := acc.Unmarshal(raw); err != nil {
		return nil, err
	}

	return acc, nil
}

func txnGet(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, mapError(err, key)
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, mapError(err, key)
	}

	return val, nil
}

func mapError(err error, key []byte) error {
	if err == badger.ErrKeyNotFound {
		return common.NewChainErr(common.ResourceNotFound, "%s", key)
	}
	return common.NewChainErr(common.DatabaseFault, "%s: %v", key, err)
}
