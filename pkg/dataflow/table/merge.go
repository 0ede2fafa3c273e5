package table

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Merge outer-joins frames on their time index. Rows missing from a frame
// are filled with NaN. Column names must be unique across all frames, and
// each frame's index must not repeat a timestamp.
func Merge(frames ...*Frame) (*Frame, error) {
	seen := make(map[int64]time.Time)
	var columns []string
	for _, f := range frames {
		if f == nil {
			continue
		}
		for r := 1; r < len(f.index); r++ {
			if f.index[r].Equal(f.index[r-1]) {
				return nil, fmt.Errorf("%w: repeated timestamp %s", ErrUnsortedIndex, f.index[r].Format(time.RFC3339))
			}
		}
		for _, t := range f.index {
			seen[t.UnixNano()] = t
		}
		columns = append(columns, f.columns...)
	}

	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	index := make([]time.Time, len(keys))
	pos := make(map[int64]int, len(keys))
	for i, k := range keys {
		index[i] = seen[k]
		pos[k] = i
	}

	data := make([][]float64, 0, len(columns))
	for _, f := range frames {
		if f == nil {
			continue
		}
		for c := range f.columns {
			col := make([]float64, len(index))
			for i := range col {
				col[i] = math.NaN()
			}
			for r, t := range f.index {
				col[pos[t.UnixNano()]] = f.values[c][r]
			}
			data = append(data, col)
		}
	}
	return New(index, columns, data)
}
