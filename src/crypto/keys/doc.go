// Package keys implements the public key cryptography used by the node.
//
// A node owns two key-pairs. The first one is an ECDSA key on the secp256k1
// curve. It signs transactions and blocks, and the account identifier of the
// node is derived from its public half. The second one is an Ed25519 key that
// identifies the node on the peer-to-peer network.
package keys
