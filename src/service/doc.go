// Package service implements the REST service of the node. Every endpoint is
// served by a request on the block channel, except the visa, the bootstrap
// file and the Prometheus metrics.
package service
