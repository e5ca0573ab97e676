package aggregation_engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Reducer turns the fully populated slot array into the outbound payload
type Reducer func(slots []int64) ([]int64, error)

// ErrSumOverflow is returned when the slot total does not fit in an int64
var ErrSumOverflow = errors.New("sum overflows int64")

// Reduce modes
const (
	ReduceList = "list"
	ReduceSum  = "sum"
)

var reducers = map[string]Reducer{
	ReduceList: PassThrough,
	ReduceSum:  Sum,
}

// PassThrough forwards every slot in index order
func PassThrough(slots []int64) ([]int64, error) {
	out := make([]int64, len(slots))
	copy(out, slots)
	return out, nil
}

// Sum forwards a single value holding the total of all slots
func Sum(slots []int64) ([]int64, error) {
	var total int64
	for i, v := range slots {
		if (v > 0 && total > math.MaxInt64-v) || (v < 0 && total < math.MinInt64-v) {
			return nil, fmt.Errorf("%w at seq %d", ErrSumOverflow, i)
		}
		total += v
	}
	return []int64{total}, nil
}

// ReducerFor returns the reducer registered under mode
func ReducerFor(mode string) (Reducer, error) {
	reducer, ok := reducers[strings.ToLower(mode)]
	if !ok {
		modes := make([]string, 0, len(reducers))
		for name := range reducers {
			modes = append(modes, name)
		}
		sort.Strings(modes)
		return nil, fmt.Errorf("unknown reduce mode %q (expected one of %s)", mode, strings.Join(modes, ", "))
	}
	return reducer, nil
}
