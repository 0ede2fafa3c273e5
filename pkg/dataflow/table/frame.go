// Package table provides the timestamp-indexed table value that flows
// between dataflow nodes.
//
// A Frame is immutable: every operation that changes shape or values
// returns a new Frame. Frames may share backing arrays with the frame they
// were derived from, which is safe because no method writes in place.
package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for frame construction and column access.
var (
	// ErrColumnMismatch indicates required columns are absent from a frame.
	ErrColumnMismatch = errors.New("column mismatch")

	// ErrUnsortedIndex indicates the time index decreases somewhere.
	ErrUnsortedIndex = errors.New("index is not monotonically non-decreasing")

	// ErrShape indicates column data does not match the index length.
	ErrShape = errors.New("column length does not match index length")

	// ErrDuplicateColumn indicates a column name appears more than once.
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Frame is an ordered sequence of timestamped rows with named float64
// columns. Values are stored column-major.
type Frame struct {
	index   []time.Time
	columns []string
	values  [][]float64
	lookup  map[string]int
}

// New creates a frame from an index, column names, and column-major data.
// data[i] holds the values of columns[i] and must have len(index) entries.
func New(index []time.Time, columns []string, data [][]float64) (*Frame, error) {
	if len(columns) != len(data) {
		return nil, fmt.Errorf("%w: %d column names for %d data columns", ErrShape, len(columns), len(data))
	}
	for i := 1; i < len(index); i++ {
		if index[i].Before(index[i-1]) {
			return nil, fmt.Errorf("%w: row %d (%s) precedes row %d (%s)",
				ErrUnsortedIndex, i, index[i].Format(time.RFC3339), i-1, index[i-1].Format(time.RFC3339))
		}
	}
	lookup := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := lookup[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		lookup[name] = i
		if len(data[i]) != len(index) {
			return nil, fmt.Errorf("%w: column %q has %d values, index has %d", ErrShape, name, len(data[i]), len(index))
		}
	}
	return &Frame{
		index:   index,
		columns: columns,
		values:  data,
		lookup:  lookup,
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(index []time.Time, columns []string, data [][]float64) *Frame {
	f, err := New(index, columns, data)
	if err != nil {
		panic(err)
	}
	return f
}

// FromRows creates a frame from row-major data.
func FromRows(index []time.Time, columns []string, rows [][]float64) (*Frame, error) {
	data := make([][]float64, len(columns))
	for c := range columns {
		data[c] = make([]float64, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns", ErrShape, r, len(row), len(columns))
		}
		for c, v := range row {
			data[c][r] = v
		}
	}
	return New(index, columns, data)
}

// Empty returns a zero-row frame with the given columns.
func Empty(columns ...string) *Frame {
	data := make([][]float64, len(columns))
	for i := range data {
		data[i] = []float64{}
	}
	f, err := New(nil, columns, data)
	if err != nil {
		panic(err)
	}
	return f
}

// IntColumns returns column names "0".."n-1".
func IntColumns(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.index)
}

// IsEmpty reports whether the frame has no rows.
func (f *Frame) IsEmpty() bool {
	return f.Len() == 0
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Index returns a copy of the time index.
func (f *Frame) Index() []time.Time {
	if f == nil {
		return nil
	}
	out := make([]time.Time, len(f.index))
	copy(out, f.index)
	return out
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.lookup[name]
	return ok
}

// Column returns a copy of the named column's values.
func (f *Frame) Column(name string) ([]float64, error) {
	i, ok := f.lookup[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrColumnMismatch, name)
	}
	out := make([]float64, len(f.values[i]))
	copy(out, f.values[i])
	return out, nil
}

// At returns the value at row r of the named column.
func (f *Frame) At(r int, name string) float64 {
	return f.values[f.lookup[name]][r]
}

// Time returns the timestamp of row r.
func (f *Frame) Time(r int) time.Time {
	return f.index[r]
}

// Row returns the values of row r in column order.
func (f *Frame) Row(r int) []float64 {
	row := make([]float64, len(f.columns))
	for c := range f.columns {
		row[c] = f.values[c][r]
	}
	return row
}

// Rows returns the frame as row-major data.
func (f *Frame) Rows() [][]float64 {
	rows := make([][]float64, f.Len())
	for r := range rows {
		rows[r] = f.Row(r)
	}
	return rows
}

// First returns the first timestamp, or false for an empty frame.
func (f *Frame) First() (time.Time, bool) {
	if f.Len() == 0 {
		return time.Time{}, false
	}
	return f.index[0], true
}

// Last returns the last timestamp, or false for an empty frame.
func (f *Frame) Last() (time.Time, bool) {
	if f.Len() == 0 {
		return time.Time{}, false
	}
	return f.index[len(f.index)-1], true
}

// Slice returns the rows whose timestamps fall inside w, inclusive on both
// ends. An inverted window yields an empty frame with the same columns.
func (f *Frame) Slice(w Window) *Frame {
	if w.IsEmpty() {
		return f.rowRange(0, 0)
	}
	lo := 0
	if !w.Start.IsZero() {
		lo = sort.Search(len(f.index), func(i int) bool {
			return !f.index[i].Before(w.Start)
		})
	}
	hi := len(f.index)
	if !w.End.IsZero() {
		hi = sort.Search(len(f.index), func(i int) bool {
			return f.index[i].After(w.End)
		})
	}
	if hi < lo {
		hi = lo
	}
	return f.rowRange(lo, hi)
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	return f.rowRange(0, clamp(n, 0, f.Len()))
}

// Tail returns the last n rows.
func (f *Frame) Tail(n int) *Frame {
	return f.rowRange(f.Len()-clamp(n, 0, f.Len()), f.Len())
}

// Drop returns the frame without its first n rows.
func (f *Frame) Drop(n int) *Frame {
	return f.rowRange(clamp(n, 0, f.Len()), f.Len())
}

func (f *Frame) rowRange(lo, hi int) *Frame {
	data := make([][]float64, len(f.columns))
	for c := range f.columns {
		data[c] = f.values[c][lo:hi:hi]
	}
	return &Frame{
		index:   f.index[lo:hi:hi],
		columns: f.columns,
		values:  data,
		lookup:  f.lookup,
	}
}

// Select returns a frame restricted to cols, in the given order.
// Every missing column is reported in the returned error.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	var missing []string
	data := make([][]float64, 0, len(cols))
	for _, name := range cols {
		i, ok := f.lookup[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		data = append(data, f.values[i])
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v (have %v)", ErrColumnMismatch, missing, f.columns)
	}
	names := make([]string, len(cols))
	copy(names, cols)
	return New(f.index, names, data)
}

// WithColumn returns a frame with the named column added or replaced.
func (f *Frame) WithColumn(name string, vals []float64) (*Frame, error) {
	if len(vals) != f.Len() {
		return nil, fmt.Errorf("%w: column %q has %d values, index has %d", ErrShape, name, len(vals), f.Len())
	}
	owned := make([]float64, len(vals))
	copy(owned, vals)

	columns := f.Columns()
	data := make([][]float64, len(f.values))
	copy(data, f.values)
	if i, ok := f.lookup[name]; ok {
		data[i] = owned
	} else {
		columns = append(columns, name)
		data = append(data, owned)
	}
	return New(f.index, columns, data)
}

// Rename returns a frame with columns renamed according to names.
// Columns absent from names keep their name.
func (f *Frame) Rename(names map[string]string) (*Frame, error) {
	columns := f.Columns()
	for i, c := range columns {
		if n, ok := names[c]; ok {
			columns[i] = n
		}
	}
	return New(f.index, columns, f.values)
}

// Sub returns f - other element-wise. Both frames must share the same
// index and columns.
func (f *Frame) Sub(other *Frame) (*Frame, error) {
	if f.Len() != other.Len() {
		return nil, fmt.Errorf("%w: %d rows vs %d rows", ErrShape, f.Len(), other.Len())
	}
	for r := range f.index {
		if !f.index[r].Equal(other.index[r]) {
			return nil, fmt.Errorf("%w: index differs at row %d", ErrShape, r)
		}
	}
	data := make([][]float64, len(f.columns))
	for c, name := range f.columns {
		j, ok := other.lookup[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrColumnMismatch, name)
		}
		col := make([]float64, f.Len())
		for r := range col {
			col[r] = f.values[c][r] - other.values[j][r]
		}
		data[c] = col
	}
	return New(f.index, f.columns, data)
}

// Equal reports whether two frames have identical index, columns, and
// values. NaNs compare equal to each other.
func (f *Frame) Equal(other *Frame) bool {
	return f.EqualApprox(other, 0)
}

// EqualApprox is like Equal but tolerates absolute differences up to tol.
func (f *Frame) EqualApprox(other *Frame, tol float64) bool {
	if f.Len() != other.Len() || len(f.columns) != len(other.columns) {
		return false
	}
	for i, c := range f.columns {
		if other.columns[i] != c {
			return false
		}
	}
	for r := range f.index {
		if !f.index[r].Equal(other.index[r]) {
			return false
		}
	}
	for c := range f.values {
		for r, v := range f.values[c] {
			w := other.values[c][r]
			if math.IsNaN(v) && math.IsNaN(w) {
				continue
			}
			if math.Abs(v-w) > tol {
				return false
			}
		}
	}
	return true
}

// String renders the frame as a fixed-width text table.
func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString("timestamp")
	for _, c := range f.columns {
		fmt.Fprintf(&b, "\t%s", c)
	}
	b.WriteByte('\n')
	for r, ts := range f.index {
		b.WriteString(ts.Format("2006-01-02 15:04:05"))
		for c := range f.columns {
			fmt.Fprintf(&b, "\t%.3f", f.values[c][r])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
