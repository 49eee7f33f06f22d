package blockchain

import (
	"encoding/binary"
	"sync"

	"github.com/mosaicnetworks/warden/src/crypto"
)

// SeedSource is the randomness beacon of the node. The seed is a deterministic
// function of the network, a nonce and the hashes of the last block, so every
// node of a network derives the same sequence.
type SeedSource struct {
	sync.RWMutex

	network string
	nonce   []byte
	seed    uint64
}

// NewSeedSource ...
func NewSeedSource(network string, nonce []byte) *SeedSource {
	s := &SeedSource{network: network, nonce: nonce}
	s.Advance(nil, nil, nil)
	return s
}

// Value implements validator.SeedSource.
func (s *SeedSource) Value() uint64 {
	s.RLock()
	defer s.RUnlock()
	return s.seed
}

// SetNetwork changes the network the seed is bound to. The seed is not
// recomputed until the next Advance.
func (s *SeedSource) SetNetwork(network string) {
	s.Lock()
	defer s.Unlock()
	s.network = network
}

// Advance mixes the hashes of a new block into the seed.
func (s *SeedSource) Advance(prevHash, txsHash, rxsHash crypto.Hash) {
	s.Lock()
	defer s.Unlock()

	prev := make([]byte, 8)
	binary.BigEndian.PutUint64(prev, s.seed)

	var buf []byte
	buf = append(buf, []byte(s.network)...)
	buf = append(buf, s.nonce...)
	buf = append(buf, prevHash...)
	buf = append(buf, txsHash...)
	buf = append(buf, rxsHash...)
	buf = append(buf, prev...)

	s.seed = binary.BigEndian.Uint64(crypto.SHA256(buf)[:8])
}
