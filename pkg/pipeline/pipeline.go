// Package pipeline wires the reconstruction core into a single runnable
// unit: parse → resolve states → validate matrix → forward pass → backward
// pass → serialize, with an optional cache consulted before any work
// happens.
//
// The pipeline is shared by the CLI and the HTTP API so both behave
// identically. The engine itself never sees the cache: the runner does a
// plain check-then-call around it, and repeated runs with identical inputs
// produce byte-identical output whether or not the cache is involved.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache.NewNullCache())
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    Topology:  "((A,C),G);",
//	    Tips:      tips.Mapping{"A": "A", "C": "C", "G": "G"},
//	    MatrixCSV: csvBytes,
//	})
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/phylotrace/phylotrace/pkg/errors"
	"github.com/phylotrace/phylotrace/pkg/tips"
)

// DefaultDelimiter is the cost matrix field separator.
const DefaultDelimiter = ','

// DefaultTTL is how long cached results stay fresh. Inputs are content-
// addressed, so stale entries can only waste space, never correctness;
// the TTL just bounds the cache size over time.
const DefaultTTL = 30 * 24 * time.Hour

// Options configures one reconstruction run.
type Options struct {
	// Topology is the nested-parenthesis tree text.
	Topology string `json:"topology"`

	// Tips assigns a state label to every leaf identifier.
	Tips tips.Mapping `json:"tips"`

	// MatrixCSV is the raw row/column-labeled cost table. When empty, the
	// equal-cost (Fitch-style) matrix over the leaf labels is used.
	MatrixCSV []byte `json:"matrix_csv,omitempty"`

	// Delimiter separates matrix fields. Defaults to ','.
	Delimiter rune `json:"delimiter,omitempty"`

	// ExpandStates builds the state space from the full matrix alphabet
	// instead of the union of leaf labels, allowing ancestors to take
	// states not observed at any tip.
	ExpandStates bool `json:"expand_states,omitempty"`

	// Workers bounds the engine's per-level fan-out. <2 runs sequentially.
	Workers int `json:"workers,omitempty"`

	// Refresh bypasses the cache read (the result is still written back).
	Refresh bool `json:"refresh,omitempty"`

	// Verify recomputes the total edge cost of the labeled tree and fails
	// the run if it does not match the engine's reported minimum.
	Verify bool `json:"verify,omitempty"`

	// Logger receives progress output. Defaults to a discard logger.
	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Topology == "" {
		return errors.New(errors.ErrCodeInvalidInput, "topology is required")
	}
	if len(o.Tips) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "tips mapping is required")
	}
	if o.ExpandStates && len(o.MatrixCSV) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "expand_states requires a cost matrix")
	}
	if o.Delimiter == 0 {
		o.Delimiter = DefaultDelimiter
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this execution (not part of the cached
	// payload; cache hits get a fresh one).
	RunID string `json:"run_id"`

	// Labeled is the serialized tree with internal nodes annotated with
	// their assigned states.
	Labeled string `json:"labeled"`

	// RootState is the assigned root state label.
	RootState string `json:"root_state"`

	// MinCost is the minimum total transition cost.
	MinCost float64 `json:"min_cost"`

	// RootCosts maps each state label to the root's forward cost for it.
	// The unreachable sentinel is reported as +Inf when decoded in Go;
	// it is serialized as the string "inf" for JSON transport.
	RootCosts map[string]float64 `json:"-"`

	// Stats contains sizes and timings.
	Stats Stats `json:"stats"`

	// CacheHit reports whether the labeled output came from the cache.
	CacheHit bool `json:"cache_hit"`
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int           `json:"node_count"`
	LeafCount  int           `json:"leaf_count"`
	StateCount int           `json:"state_count"`
	ParseTime  time.Duration `json:"parse_time"`
	LabelTime  time.Duration `json:"label_time"`
}
