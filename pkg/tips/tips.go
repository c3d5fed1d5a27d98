// Package tips loads the external leaf→label mapping that assigns a known
// state to every leaf of the topology.
//
// The native format is a tab-separated file with a header line: column 0 is
// the leaf identifier as it appears in the topology, column 1 is the state
// label. A mapping can additionally be re-keyed through a translation table
// (for example airport→country) to run the same tip data against a coarser
// state space.
package tips

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/phylotrace/phylotrace/pkg/errors"
	"github.com/phylotrace/phylotrace/pkg/tree"
)

// Mapping assigns a state label to each leaf identifier.
type Mapping map[string]string

// Read parses a tab-separated tip file. The first line is a header and is
// skipped; blank lines are ignored. Later columns, if present, are ignored.
func Read(r io.Reader) (Mapping, error) {
	m := Mapping{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 2 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "tip file line %d: want at least 2 tab-separated columns", line)
		}
		id := strings.TrimSpace(cols[0])
		label := strings.TrimSpace(cols[1])
		if err := errors.ValidateStateLabel(label); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "tip file line %d", line)
		}
		if _, dup := m[id]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "tip file line %d: duplicate leaf %q", line, id)
		}
		m[id] = label
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read tip file")
	}
	if len(m) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "tip file contains no assignments")
	}
	return m, nil
}

// ReadFile reads a tab-separated tip file from a path.
func ReadFile(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "tip file %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open tip file %s", path)
	}
	defer f.Close()
	return Read(f)
}

// Translate re-keys every label through a translation table, e.g. mapping
// airports to their countries. A label missing from the table is an
// UNKNOWN_LABEL error.
func (m Mapping) Translate(table map[string]string) (Mapping, error) {
	out := make(Mapping, len(m))
	for id, label := range m {
		translated, ok := table[label]
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownLabel, "no translation for label %q (leaf %q)", label, id)
		}
		out[id] = translated
	}
	return out, nil
}

// ReadTranslation parses a translation table in the same two-column
// tab-separated shape as a tip file (header skipped): column 0 the source
// label, column 1 the target label.
func ReadTranslation(r io.Reader) (map[string]string, error) {
	m, err := Read(r)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ReadTranslationFile reads a translation table from a path.
func ReadTranslationFile(path string) (map[string]string, error) {
	m, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Check verifies that the mapping covers every leaf of the tree. A leaf
// without an assignment is an UNKNOWN_LABEL error, reported before any
// computation starts.
func (m Mapping) Check(t *tree.Tree) error {
	for _, i := range t.Leaves() {
		leaf := t.Node(i)
		if _, ok := m[leaf.Name]; !ok {
			return errors.New(errors.ErrCodeUnknownLabel, "leaf %q has no state assignment", leaf.Name)
		}
	}
	return nil
}
