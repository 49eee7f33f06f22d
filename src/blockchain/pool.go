package blockchain

import (
	"time"

	"github.com/mosaicnetworks/warden/src/crypto"
)

type pooledTx struct {
	tx       Transaction
	hash     crypto.Hash
	received time.Time
}

// pool keeps unconfirmed transactions in arrival order.
type pool struct {
	txs    []pooledTx
	hashes map[string]struct{}
}

func newPool() *pool {
	return &pool{hashes: make(map[string]struct{})}
}

// add returns false if the transaction is already pooled.
func (p *pool) add(tx Transaction, now time.Time) (crypto.Hash, bool) {
	hash := tx.Hash()
	key := hash.Hex()
	if _, ok := p.hashes[key]; ok {
		return hash, false
	}
	p.hashes[key] = struct{}{}
	p.txs = append(p.txs, pooledTx{tx: tx, hash: hash, received: now})
	return hash, true
}

func (p *pool) len() int {
	return len(p.txs)
}

// oldest returns the reception time of the first pooled transaction.
func (p *pool) oldest() (time.Time, bool) {
	if len(p.txs) == 0 {
		return time.Time{}, false
	}
	return p.txs[0].received, true
}

// take removes up to n transactions from the head of the pool.
func (p *pool) take(n int) []pooledTx {
	if n <= 0 || n > len(p.txs) {
		n = len(p.txs)
	}
	res := make([]pooledTx, n)
	copy(res, p.txs[:n])
	p.txs = p.txs[n:]
	for _, t := range res {
		delete(p.hashes, t.hash.Hex())
	}
	return res
}

// hash identifies the current content of the pool. It is nil for an empty
// pool.
func (p *pool) hash() crypto.Hash {
	if len(p.txs) == 0 {
		return nil
	}
	hashes := make([]crypto.Hash, len(p.txs))
	for i, t := range p.txs {
		hashes[i] = t.hash
	}
	return merkleHash(hashes)
}

// pending returns the pooled transactions in order.
func (p *pool) pending() []Transaction {
	res := make([]Transaction, len(p.txs))
	for i, t := range p.txs {
		res[i] = t.tx
	}
	return res
}
