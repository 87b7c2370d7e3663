package heapdb

import (
	"fmt"
	"log"
	"math"
)

/*
table_stats.go is a standalone per-table statistics snapshot: it scans a
DBFile twice under its own transaction (once for per-field min/max, once
to fill the histograms), builds one IntHistogram or
StringHistogram per field, and answers selectivity/cardinality/cost
questions against them, wiring IntHistogram together with the
BoomFilters-backed StringHistogram into one facade.
*/

// Stats is the interface a query planner (out of scope here) would
// consult for scan cost and selectivity estimates.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

// CostPerPage is the assumed cost of one page read, used by
// EstimateScanCost.
const CostPerPage = 1000

// NumHistBins is the bucket count used for every IntHistogram built by
// ComputeTableStats.
const NumHistBins = 100

type TableStats struct {
	basePages  int
	baseTups   int
	histograms map[string]any
	tupleDesc  *TupleDesc
}

func tableMinMax(tid TransactionId, dbFile DBFile) ([]int32, []int32, error) {
	td := dbFile.Descriptor()
	mins := make([]int32, len(td.Fields))
	maxs := make([]int32, len(td.Fields))
	for i := range mins {
		mins[i] = math.MaxInt32
		maxs[i] = math.MinInt32
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	for {
		tup, err := iter.Next()
		if err != nil {
			return nil, nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			if f.Ftype != IntType {
				continue
			}
			v := tup.Fields[i].(IntField).Value
			if v < mins[i] {
				mins[i] = v
			}
			if v > maxs[i] {
				maxs[i] = v
			}
		}
	}
	for i := range mins {
		if mins[i] > maxs[i] {
			mins[i] = 0
			maxs[i] = 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats scans dbFile twice (min/max, then histogram fill),
// under a fresh transaction committed on return, and builds a histogram
// per field.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTransactionId()
	defer bp.Commit(tid)

	td := dbFile.Descriptor()
	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		return nil, err
	}

	hists := make(map[string]any, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			hists[f.Fname] = NewIntHistogram(NumHistBins, int(mins[i]), int(maxs[i]))
		case StringType:
			hists[f.Fname] = NewStringHistogram()
		default:
			return nil, fmt.Errorf("unexpected field type for %s", f.Fname)
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}
	baseTups := 0
	for {
		tup, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				v := tup.Fields[i].(IntField).Value
				hists[f.Fname].(*IntHistogram).AddValue(int(v))
			case StringType:
				v := tup.Fields[i].(StringField).Value
				hists[f.Fname].(*StringHistogram).AddValue(v)
			}
		}
		baseTups++
	}

	return &TableStats{basePages: dbFile.NumPages(), baseTups: baseTups, histograms: hists, tupleDesc: td}, nil
}

// EstimateScanCost is the assumed cost of a full sequential scan: one
// CostPerPage charge per page, regardless of occupancy.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages * CostPerPage)
}

// EstimateCardinality scales the base tuple count by selectivity.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.baseTups) * selectivity)
}

// EstimateSelectivity dispatches to the named field's histogram.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	hist, ok := t.histograms[field]
	if !ok {
		log.Printf("no histogram for field %s, assuming selectivity 1.0", field)
		return 1.0, nil
	}

	switch h := hist.(type) {
	case *IntHistogram:
		iv, ok := value.(IntField)
		if !ok {
			return 1.0, GoDBError{IllegalArgumentError, fmt.Sprintf("field %q is int, value is not an IntField", field)}
		}
		return h.EstimateSelectivity(op, int(iv.Value)), nil
	case *StringHistogram:
		sv, ok := value.(StringField)
		if !ok {
			return 1.0, GoDBError{IllegalArgumentError, fmt.Sprintf("field %q is string, value is not a StringField", field)}
		}
		return h.EstimateSelectivity(op, sv.Value), nil
	default:
		return 1.0, GoDBError{IllegalArgumentError, "unexpected histogram type"}
	}
}
