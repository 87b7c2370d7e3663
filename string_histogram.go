package heapdb

import (
	boom "github.com/tylertreat/BoomFilters"
)

/*
string_histogram.go estimates STRING-field selectivity with a count-min
sketch standing in for a bucketed histogram, trading exactness for a
fixed memory footprint regardless of the number of distinct strings
seen. It is table_stats.go's counterpart to IntHistogram for STRING
predicates.
*/

// StringHistogram estimates selectivity of equality predicates over a
// STRING field using a count-min sketch rather than exact bucket counts.
type StringHistogram struct {
	cms *boom.CountMinSketch
}

// NewStringHistogram constructs a sketch with a 0.1% error rate at 99.9%
// confidence.
func NewStringHistogram() *StringHistogram {
	return &StringHistogram{cms: boom.NewCountMinSketch(0.001, 0.999)}
}

// AddValue records one occurrence of s.
func (h *StringHistogram) AddValue(s string) {
	h.cms.Add([]byte(s))
}

// EstimateSelectivity estimates the fraction of added values equal to s.
// Only equality is meaningful for a count-min sketch; any other op
// returns 0, since it would need the exact value distribution the sketch
// does not retain.
func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	if op != OpEq || h.cms.TotalCount() == 0 {
		return 0
	}
	return float64(h.cms.Count([]byte(s))) / float64(h.cms.TotalCount())
}
