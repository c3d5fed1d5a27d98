package states

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/phylotrace/phylotrace/pkg/errors"
)

// Matrix is a validated k×k transition cost table indexed through a Space.
// cost(from→to) need not equal cost(to→from). The diagonal is zero; every
// off-diagonal entry is a non-negative finite value or the unreachable
// sentinel (+Inf).
type Matrix struct {
	space *Space
	costs []float64 // row-major, k×k, rows = from, cols = to
}

// Table is a raw row/column-labeled cost table as read from an external
// source, before projection onto a state space.
type Table struct {
	Labels []string
	Values [][]float64
}

// NewMatrix projects a labeled table onto the given state space and
// validates it.
//
// The table's label set may be a superset of the space: the engine only
// ever looks up transitions between space states, so extra rows and columns
// are ignored. A space label missing from the table is a DIMENSION_MISMATCH.
// Negative, NaN, or non-zero diagonal entries are INVALID_COST.
func NewMatrix(space *Space, table Table) (*Matrix, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	pos := make(map[string]int, len(table.Labels))
	for i, l := range table.Labels {
		pos[l] = i
	}

	var missing []string
	for _, l := range space.labels {
		if _, ok := pos[l]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			"cost matrix does not cover the state space, missing: %s", strings.Join(missing, ", "))
	}

	k := space.Size()
	costs := make([]float64, k*k)
	for i, from := range space.labels {
		row := table.Values[pos[from]]
		for j, to := range space.labels {
			costs[i*k+j] = row[pos[to]]
		}
	}
	return &Matrix{space: space, costs: costs}, nil
}

// EqualCostMatrix returns the unweighted matrix over the space: zero on the
// diagonal, one everywhere else. With it the engine reduces to a
// Fitch-style minimum-change labeling.
func EqualCostMatrix(space *Space) *Matrix {
	k := space.Size()
	costs := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i != j {
				costs[i*k+j] = 1
			}
		}
	}
	return &Matrix{space: space, costs: costs}
}

// Space returns the state space this matrix is indexed through.
func (m *Matrix) Space() *Space { return m.space }

// Cost returns the transition cost from state index `from` to state index
// `to`. The result is a non-negative finite value or the unreachable
// sentinel (+Inf).
func (m *Matrix) Cost(from, to int) float64 {
	return m.costs[from*m.space.Size()+to]
}

// validateTable checks squareness and entry validity of a raw table.
func validateTable(table Table) error {
	k := len(table.Labels)
	if k == 0 {
		return errors.New(errors.ErrCodeDimensionMismatch, "cost matrix has no labels")
	}
	if len(table.Values) != k {
		return errors.New(errors.ErrCodeDimensionMismatch,
			"cost matrix is not square: %d labels but %d rows", k, len(table.Values))
	}
	seen := make(map[string]bool, k)
	for _, l := range table.Labels {
		if err := errors.ValidateStateLabel(l); err != nil {
			return err
		}
		if seen[l] {
			return errors.New(errors.ErrCodeDimensionMismatch, "duplicate matrix label %q", l)
		}
		seen[l] = true
	}
	for i, row := range table.Values {
		if len(row) != k {
			return errors.New(errors.ErrCodeDimensionMismatch,
				"cost matrix row %q has %d entries, want %d", table.Labels[i], len(row), k)
		}
		for j, v := range row {
			switch {
			case math.IsNaN(v):
				return errors.New(errors.ErrCodeInvalidCost,
					"cost(%s→%s) is not a number", table.Labels[i], table.Labels[j])
			case v < 0:
				return errors.New(errors.ErrCodeInvalidCost,
					"cost(%s→%s) is negative: %v", table.Labels[i], table.Labels[j], v)
			case i == j && v != 0:
				return errors.New(errors.ErrCodeInvalidCost,
					"cost(%s→%s) must be zero on the diagonal, got %v", table.Labels[i], table.Labels[j], v)
			}
		}
	}
	return nil
}

// ReadTable parses a row/column-labeled cost table from CSV-shaped input.
// The first record is the header: a corner cell (ignored, may be empty)
// followed by the column labels. Every following record is a row label and
// its costs. The sentinel may be written as "inf", "Inf", or "+Inf".
func ReadTable(r io.Reader, comma rune) (Table, error) {
	cr := csv.NewReader(r)
	if comma != 0 {
		cr.Comma = comma
	}
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // length checked against the header below

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, errors.Wrap(errors.ErrCodeInvalidCost, err, "read cost matrix")
	}
	if len(records) < 2 {
		return Table{}, errors.New(errors.ErrCodeDimensionMismatch, "cost matrix needs a header and at least one row")
	}

	header := records[0]
	if len(header) < 2 {
		return Table{}, errors.New(errors.ErrCodeDimensionMismatch, "cost matrix header has no labels")
	}
	labels := make([]string, len(header)-1)
	for i, cell := range header[1:] {
		labels[i] = strings.TrimSpace(cell)
	}
	k := len(labels)

	rowLabels := make([]string, 0, k)
	values := make([][]float64, 0, k)
	for _, rec := range records[1:] {
		if len(rec) != k+1 {
			return Table{}, errors.New(errors.ErrCodeDimensionMismatch,
				"cost matrix row %q has %d cells, want %d", strings.TrimSpace(rec[0]), len(rec)-1, k)
		}
		rowLabels = append(rowLabels, strings.TrimSpace(rec[0]))
		row := make([]float64, k)
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return Table{}, errors.New(errors.ErrCodeInvalidCost, "non-numeric cost %q in row %q", cell, rec[0])
			}
			if math.IsInf(v, -1) {
				return Table{}, errors.New(errors.ErrCodeInvalidCost, "cost -Inf in row %q", rec[0])
			}
			row[j] = v
		}
		values = append(values, row)
	}

	// Row labels must match column labels for a square table. Order may
	// differ; rows are reindexed to the header order.
	reordered, err := reorderRows(labels, rowLabels, values)
	if err != nil {
		return Table{}, err
	}
	return Table{Labels: labels, Values: reordered}, nil
}

// ReadTableFile reads a cost table from a file path.
func ReadTableFile(path string, comma rune) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Table{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "cost matrix %s", path)
		}
		return Table{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "open cost matrix %s", path)
	}
	defer f.Close()
	return ReadTable(f, comma)
}

func reorderRows(labels, rowLabels []string, values [][]float64) ([][]float64, error) {
	if len(rowLabels) != len(labels) {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			"cost matrix is not square: %d columns but %d rows", len(labels), len(rowLabels))
	}
	byLabel := make(map[string]int, len(rowLabels))
	for i, l := range rowLabels {
		if _, dup := byLabel[l]; dup {
			return nil, errors.New(errors.ErrCodeDimensionMismatch, "duplicate matrix row label %q", l)
		}
		byLabel[l] = i
	}
	out := make([][]float64, len(labels))
	for i, l := range labels {
		ri, ok := byLabel[l]
		if !ok {
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				"cost matrix row/column labels differ: no row for %q", l)
		}
		out[i] = values[ri]
	}
	return out, nil
}
