// Package states defines the finite state alphabet and the transition cost
// matrix used by the reconstruction engine.
//
// The state space is an ordered set of distinct labels with a stable total
// order (lexicographic). The order matters: the engine's tie-break picks the
// lowest index, so the same label set must always produce the same ordering
// across runs and machines.
package states

import (
	"slices"

	"github.com/phylotrace/phylotrace/pkg/errors"
)

// Space is an ordered set of k distinct state labels with a total
// label→index mapping. Built once per run and never mutated afterwards.
type Space struct {
	labels []string
	index  map[string]int
}

// NewSpace builds a state space from the given labels. Duplicates are
// collapsed and the result is ordered lexicographically, so the same label
// set always yields the same ordering. Labels must be well-formed; at least
// one label is required.
func NewSpace(labels []string) (*Space, error) {
	if len(labels) == 0 {
		return nil, errors.New(errors.ErrCodeUnknownLabel, "state space requires at least one label")
	}
	uniq := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if err := errors.ValidateStateLabel(l); err != nil {
			return nil, err
		}
		if !seen[l] {
			seen[l] = true
			uniq = append(uniq, l)
		}
	}
	slices.Sort(uniq)

	index := make(map[string]int, len(uniq))
	for i, l := range uniq {
		index[l] = i
	}
	return &Space{labels: uniq, index: index}, nil
}

// SpaceFromAssignments builds a state space from the union of the labels in
// a leaf→label mapping.
func SpaceFromAssignments(byLeaf map[string]string) (*Space, error) {
	labels := make([]string, 0, len(byLeaf))
	for _, l := range byLeaf {
		labels = append(labels, l)
	}
	return NewSpace(labels)
}

// Size returns k, the number of states.
func (s *Space) Size() int { return len(s.labels) }

// Labels returns the ordered labels. The returned slice is a copy.
func (s *Space) Labels() []string { return slices.Clone(s.labels) }

// Label returns the label at the given index. Panics on out-of-range
// indexes, which can only come from engine corruption.
func (s *Space) Label(i int) string { return s.labels[i] }

// Index returns the index of a label. Fails with UNKNOWN_LABEL when the
// label is not part of the space.
func (s *Space) Index(label string) (int, error) {
	i, ok := s.index[label]
	if !ok {
		return 0, errors.New(errors.ErrCodeUnknownLabel, "label %q is not in the state space", label)
	}
	return i, nil
}

// Contains reports whether the label belongs to the space.
func (s *Space) Contains(label string) bool {
	_, ok := s.index[label]
	return ok
}
