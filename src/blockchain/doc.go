// Package blockchain implements the block engine of the node and the request
// channel through which every other component talks to it.
//
// The engine owns the transaction pool, cuts blocks when the pool reaches the
// configured threshold or when the oldest pooled transaction is older than the
// configured timeout, and executes them through the virtual machine. Blocks are
// only produced when the installed validator predicate accepts this node.
//
// Components never touch the engine state directly. They send a Message with
// RequestSender.SendSync and wait for the answer on the returned Receiver.
// Subscriptions use the same Receiver to stream block and transaction events.
package blockchain
