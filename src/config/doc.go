// Package config defines the configuration of a node.
//
// Whether the node is started from Go code or from the command line, it uses
// the Config object defined in this package to store and forward configuration
// options. On top of these options, the node relies on a data directory,
// defined by Config.DataDir, where it expects to find a few additional files:
//
//  node_key      // the raw secp256k1 private key of the node (cf. warden keygen).
//  p2p_key       // the Ed25519 key identifying the node on the p2p network.
//  bootstrap.bin // the genesis bundle used to originate a new network.
//  warden.toml   // (optional) configuration file read by the run command.
package config
