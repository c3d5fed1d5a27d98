// Package cache implements the idempotent-recomputation collaborator: a
// byte-oriented cache keyed by the content of a run's inputs, so a caller
// can skip invoking the reconstruction engine entirely when a prior output
// for the same (topology, leaf labels, cost matrix) triple exists.
//
// The engine itself has no knowledge of caching - the pipeline composes a
// check-then-call around it. Backends: file (CLI default), redis and mongo
// (shared deployments), and null (caching disabled).
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ResultKeyOpts captures the run options that change the output for the
// same inputs and therefore must be part of the key. The delimiter is
// included because it changes how the matrix bytes parse.
type ResultKeyOpts struct {
	ExpandStates bool   `json:"expand_states"`
	Delimiter    string `json:"delimiter"`
}

// ResultKey builds a content-addressed key for a reconstruction run.
// Identical inputs always produce identical keys: the tip mapping is
// serialized with sorted keys and the matrix bytes are hashed as-is.
func ResultKey(topology string, leafLabels map[string]string, matrix []byte, opts ResultKeyOpts) string {
	return hashKey("result", topology, leafLabels, string(matrix), opts)
}
