// Package wm implements the virtual machine that executes smart contracts.
//
// Contracts are resolved through the code stored in the service account under
// "contracts:code:<hex hash>". Code of the form "native:<name>" selects a Go
// contract registered with the NativeMachine. Every call runs against a store
// Fork through an Env that buffers writes, so a failed call leaves the fork
// untouched.
package wm
