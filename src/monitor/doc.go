// Package monitor periodically collects the status of the node from the block
// engine. Every cycle the status is written to a report file, exported as
// Prometheus metrics and, when a collector is configured, pushed to it as JSON.
package monitor
