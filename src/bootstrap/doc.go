// Package bootstrap answers the first question a node asks at boot: does the
// network it belongs to already exist?
//
// The answer comes from the presence of the service account in the local
// database. When it is missing the node has to originate the network from a
// genesis bundle and wait, block after block, for the service account to
// appear. This package also fetches genesis bundles from running nodes.
package bootstrap
