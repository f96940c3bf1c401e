package docbase

// AggregateSpec describes one aggregate call: which entities to include,
// which accumulators to run, and an optional group-by field set.
type AggregateSpec struct {
	Where   Where
	Count   bool
	Sum     []string
	Avg     []string
	Min     []string
	Max     []string
	GroupBy []string
}

// AggregateResult carries the accumulated values for one group (or for
// the whole filtered set when no GroupBy is requested). Avg fields with
// zero numeric contributions are nil; min/max fields with no comparable
// values are nil.
type AggregateResult struct {
	Count int
	Sum   map[string]float64
	Avg   map[string]interface{}
	Min   map[string]interface{}
	Max   map[string]interface{}

	// Groups is populated instead of the top-level accumulators when the
	// spec requests GroupBy.
	Groups []GroupResult
}

// GroupResult pairs a composite group key with that group's aggregates.
type GroupResult struct {
	Key map[string]interface{}
	AggregateResult
}

type accumulator struct {
	spec  AggregateSpec
	count int
	sum   map[string]float64
	avgN  map[string]int
	min   map[string]interface{}
	max   map[string]interface{}
}

func newAccumulator(spec AggregateSpec) *accumulator {
	return &accumulator{
		spec: spec,
		sum:  make(map[string]float64),
		avgN: make(map[string]int),
		min:  make(map[string]interface{}),
		max:  make(map[string]interface{}),
	}
}

// add folds one entity into every requested accumulator in a single pass.
// Non-numeric values are skipped for sum/avg rather than treated as
// errors; min/max skip null and absent values.
func (a *accumulator) add(e Entity) {
	a.count++
	for _, field := range a.spec.Sum {
		if f, ok := numericField(e, field); ok {
			a.sum[field] += f
		}
	}
	for _, field := range a.spec.Avg {
		if f, ok := numericField(e, field); ok {
			// Reuse sum storage keyed by field for the running total.
			a.sum[avgKey(field)] += f
			a.avgN[field]++
		}
	}
	for _, field := range a.spec.Min {
		v, ok := fieldValue(e, field)
		if !ok || v == nil {
			continue
		}
		current, seen := a.min[field]
		if !seen || compareValues(v, current) < 0 {
			a.min[field] = v
		}
	}
	for _, field := range a.spec.Max {
		v, ok := fieldValue(e, field)
		if !ok || v == nil {
			continue
		}
		current, seen := a.max[field]
		if !seen || compareValues(v, current) > 0 {
			a.max[field] = v
		}
	}
}

func (a *accumulator) result() AggregateResult {
	out := AggregateResult{
		Sum: make(map[string]float64, len(a.spec.Sum)),
		Avg: make(map[string]interface{}, len(a.spec.Avg)),
		Min: make(map[string]interface{}, len(a.spec.Min)),
		Max: make(map[string]interface{}, len(a.spec.Max)),
	}
	if a.spec.Count {
		out.Count = a.count
	}
	for _, field := range a.spec.Sum {
		out.Sum[field] = a.sum[field]
	}
	for _, field := range a.spec.Avg {
		n := a.avgN[field]
		if n == 0 {
			out.Avg[field] = nil
			continue
		}
		out.Avg[field] = a.sum[avgKey(field)] / float64(n)
	}
	for _, field := range a.spec.Min {
		out.Min[field] = a.min[field]
	}
	for _, field := range a.spec.Max {
		out.Max[field] = a.max[field]
	}
	return out
}

func avgKey(field string) string {
	return "\x00avg\x00" + field
}

func numericField(e Entity, field string) (float64, bool) {
	v, ok := fieldValue(e, field)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// aggregateEntities runs the spec over an already-filtered entity list.
// With GroupBy, entities are partitioned by composite group key in
// first-encounter order, then accumulated per group.
func aggregateEntities(entities []Entity, spec AggregateSpec) AggregateResult {
	if len(spec.GroupBy) == 0 {
		acc := newAccumulator(spec)
		for _, e := range entities {
			acc.add(e)
		}
		return acc.result()
	}

	type group struct {
		key map[string]interface{}
		acc *accumulator
	}
	var order []string
	groups := make(map[string]*group)

	for _, e := range entities {
		keyValues := make([]interface{}, len(spec.GroupBy))
		key := make(map[string]interface{}, len(spec.GroupBy))
		for i, field := range spec.GroupBy {
			v, _ := fieldValue(e, field)
			keyValues[i] = v
			key[field] = v
		}
		encoded := encodeIndexKey(keyValues)
		g, exists := groups[encoded]
		if !exists {
			g = &group{key: key, acc: newAccumulator(spec)}
			groups[encoded] = g
			order = append(order, encoded)
		}
		g.acc.add(e)
	}

	out := AggregateResult{Groups: make([]GroupResult, 0, len(order))}
	for _, encoded := range order {
		g := groups[encoded]
		out.Groups = append(out.Groups, GroupResult{
			Key:             g.key,
			AggregateResult: g.acc.result(),
		})
	}
	return out
}
