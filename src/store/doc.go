// Package store implements the persistent storage of the node on top of a
// Badger key-value database.
//
// State changes are never applied directly. They are staged in a Fork, an
// isolated read-write view of the database, and become visible to readers only
// when the fork is merged. Update wraps the whole fork, mutate and merge cycle
// under the store write lock so that concurrent writers are serialized.
package store
