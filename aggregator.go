package heapdb

/*
aggregator.go implements a direct merge(tuple)/iterator() contract for
group-by aggregation, rather than building output through an
Expr-evaluated AggState per group driven by a query planner. Grouping and
ordered emission use a map keyed by the stringified group value, plus an
insertion-order slice for deterministic iteration.
*/

// NoGrouping is the sentinel gbfield value meaning "aggregate over the
// whole input with no grouping".
const NoGrouping = -1

// NoGroupingKey is the group key used when gbfield == NoGrouping.
const NoGroupingKey = "NO_GROUPING_KEY"

// IntAggregator computes one of MIN, MAX, SUM, AVG, COUNT over an INT
// field, optionally grouped by another field.
type IntAggregator struct {
	gbfield     int
	gbfieldtype *DBType
	afield      int
	op          AggOp

	groups    map[string]*intAccumulator
	groupVals map[string]DBValue
	order     []string
}

// NewIntAggregator constructs an IntAggregator. Pass gbfield ==
// NoGrouping and gbfieldtype == nil for an ungrouped aggregate.
func NewIntAggregator(gbfield int, gbfieldtype *DBType, afield int, op AggOp) *IntAggregator {
	return &IntAggregator{
		gbfield:     gbfield,
		gbfieldtype: gbfieldtype,
		afield:      afield,
		op:          op,
		groups:      make(map[string]*intAccumulator),
		groupVals:   make(map[string]DBValue),
	}
}

func (a *IntAggregator) groupKey(t *Tuple) (string, DBValue, error) {
	if a.gbfield == NoGrouping {
		return NoGroupingKey, nil, nil
	}
	gv := t.Fields[a.gbfield]
	if a.gbfieldtype != nil {
		var ok bool
		switch *a.gbfieldtype {
		case IntType:
			_, ok = gv.(IntField)
		case StringType:
			_, ok = gv.(StringField)
		}
		if !ok {
			return "", nil, GoDBError{IllegalArgumentError, "group-by field does not match configured type"}
		}
	}
	return gv.String(), gv, nil
}

// Merge folds one tuple into its group's accumulator.
func (a *IntAggregator) Merge(t *Tuple) error {
	key, gv, err := a.groupKey(t)
	if err != nil {
		return err
	}
	av, ok := t.Fields[a.afield].(IntField)
	if !ok {
		return GoDBError{IllegalArgumentError, "aggregate field is not an INT"}
	}

	acc, ok := a.groups[key]
	if !ok {
		acc = newIntAccumulator(a.op)
		a.groups[key] = acc
		a.groupVals[key] = gv
		a.order = append(a.order, key)
	}
	acc.add(av.Value)
	return nil
}

// outputDesc is the schema of tuples returned by Iterator: (groupVal,
// aggregateVal) when grouped, (aggregateVal) otherwise; aggregateVal is
// always INT.
func (a *IntAggregator) outputDesc() *TupleDesc {
	aggField := FieldType{Fname: "aggregateVal", Ftype: IntType}
	if a.gbfield == NoGrouping {
		return &TupleDesc{Fields: []FieldType{aggField}}
	}
	gbField := FieldType{Fname: "groupVal", Ftype: *a.gbfieldtype}
	return &TupleDesc{Fields: []FieldType{gbField, aggField}}
}

// Iterator returns a single-pass walk over one result tuple per group,
// in the order groups were first seen.
func (a *IntAggregator) Iterator() func() (*Tuple, error) {
	desc := a.outputDesc()
	i := 0
	return func() (*Tuple, error) {
		if i >= len(a.order) {
			return nil, nil
		}
		key := a.order[i]
		i++
		acc := a.groups[key]
		result := IntField{Value: acc.value()}

		if a.gbfield == NoGrouping {
			return &Tuple{Desc: *desc, Fields: []DBValue{result}}, nil
		}
		return &Tuple{Desc: *desc, Fields: []DBValue{a.groupVals[key], result}}, nil
	}
}

// StringAggregator supports only COUNT over a STRING field; any other op is rejected at construction.
type StringAggregator struct {
	gbfield     int
	gbfieldtype *DBType
	afield      int

	groups    map[string]*stringCountAccumulator
	groupVals map[string]DBValue
	order     []string
}

// NewStringAggregator constructs a StringAggregator configured for op.
// op must be Count; any other value fails with UnsupportedOperation.
func NewStringAggregator(gbfield int, gbfieldtype *DBType, afield int, op AggOp) (*StringAggregator, error) {
	if op != Count {
		return nil, GoDBError{UnsupportedOperationError, "string aggregator supports only COUNT"}
	}
	return &StringAggregator{
		gbfield:     gbfield,
		gbfieldtype: gbfieldtype,
		afield:      afield,
		groups:      make(map[string]*stringCountAccumulator),
		groupVals:   make(map[string]DBValue),
	}, nil
}

func (a *StringAggregator) groupKey(t *Tuple) (string, DBValue, error) {
	if a.gbfield == NoGrouping {
		return NoGroupingKey, nil, nil
	}
	gv := t.Fields[a.gbfield]
	if a.gbfieldtype != nil {
		var ok bool
		switch *a.gbfieldtype {
		case IntType:
			_, ok = gv.(IntField)
		case StringType:
			_, ok = gv.(StringField)
		}
		if !ok {
			return "", nil, GoDBError{IllegalArgumentError, "group-by field does not match configured type"}
		}
	}
	return gv.String(), gv, nil
}

// Merge folds one tuple into its group's count.
func (a *StringAggregator) Merge(t *Tuple) error {
	key, gv, err := a.groupKey(t)
	if err != nil {
		return err
	}
	if _, ok := t.Fields[a.afield].(StringField); !ok {
		return GoDBError{IllegalArgumentError, "aggregate field is not a STRING"}
	}

	acc, ok := a.groups[key]
	if !ok {
		acc = &stringCountAccumulator{}
		a.groups[key] = acc
		a.groupVals[key] = gv
		a.order = append(a.order, key)
	}
	acc.add("")
	return nil
}

func (a *StringAggregator) outputDesc() *TupleDesc {
	aggField := FieldType{Fname: "aggregateVal", Ftype: IntType}
	if a.gbfield == NoGrouping {
		return &TupleDesc{Fields: []FieldType{aggField}}
	}
	gbField := FieldType{Fname: "groupVal", Ftype: *a.gbfieldtype}
	return &TupleDesc{Fields: []FieldType{gbField, aggField}}
}

// Iterator returns a single-pass walk over one result tuple per group,
// in the order groups were first seen.
func (a *StringAggregator) Iterator() func() (*Tuple, error) {
	desc := a.outputDesc()
	i := 0
	return func() (*Tuple, error) {
		if i >= len(a.order) {
			return nil, nil
		}
		key := a.order[i]
		i++
		acc := a.groups[key]
		result := IntField{Value: acc.value()}

		if a.gbfield == NoGrouping {
			return &Tuple{Desc: *desc, Fields: []DBValue{result}}, nil
		}
		return &Tuple{Desc: *desc, Fields: []DBValue{a.groupVals[key], result}}, nil
	}
}
