// Package app drives the startup and the lifecycle of a node.
//
// At boot the node asks its block engine whether the service account exists.
// If it does, the node joins the network described by the settings stored in
// its database. If it does not, the node originates a new network from a
// genesis bundle: it stores the service account, seeds the pool with the
// genesis transactions and waits for the first blocks to produce the network
// settings. In both cases every reconfiguration of the engine stops it,
// changes its configuration and starts it again.
//
// Once started, Park supervises the services and shuts them all down as soon
// as one of them stops.
package app
