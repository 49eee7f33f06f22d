package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkNameMissing is returned when settings without a network name
	// are about to be handed to the block engine.
	ErrNetworkNameMissing = errors.New("network name missing from settings")

	// ErrIncompatibleVersion is returned when the network requires a newer
	// node.
	ErrIncompatibleVersion = errors.New("node version older than the network minimum")

	// ErrEngineClosed is returned by engine transitions after shutdown.
	ErrEngineClosed = errors.New("block engine closed")
)

// BootError is a failure during Start. The node must not go on after one.
type BootError struct {
	Stage State
	Err   error
}

// Error ...
func (e *BootError) Error() string {
	return fmt.Sprintf("boot failed in %s: %v", e.Stage, e.Err)
}

// Unwrap ...
func (e *BootError) Unwrap() error {
	return e.Err
}

// ServiceDownError is returned by Park when a supervised service stopped.
type ServiceDownError struct {
	Service string
}

// Error ...
func (e *ServiceDownError) Error() string {
	return fmt.Sprintf("service %s is not running", e.Service)
}
