package docbase

import "strings"

// Where is a recursive query predicate tree. Keys are dot-notation field
// paths mapping to either a literal (direct equality) or an operator
// object, or one of the combinators $or, $and, $not.
//
//	docbase.Where{"status": "active"}
//	docbase.Where{"price": docbase.Where{"$gte": 10, "$lt": 100}}
//	docbase.Where{"$or": []docbase.Where{{"a": 1}, {"b": 2}}}
type Where map[string]interface{}

// Built-in operator names.
const (
	opEq     = "$eq"
	opNe     = "$ne"
	opGt     = "$gt"
	opGte    = "$gte"
	opLt     = "$lt"
	opLte    = "$lte"
	opIn     = "$in"
	opNin    = "$nin"
	opExists = "$exists"
	opSearch = "$search"
)

// Matches evaluates the clause against one entity. Plugin-registered
// operators from reg are consulted for any $-prefixed operator that is not
// built in; an operator known to neither side is an error, not a miss.
func (w Where) Matches(e Entity, reg *Registry) (bool, error) {
	for key, condition := range w {
		switch key {
		case "$or":
			clauses, err := toClauseList(condition)
			if err != nil {
				return false, err
			}
			// An empty $or never matches.
			matched := false
			for _, sub := range clauses {
				ok, err := sub.Matches(e, reg)
				if err != nil {
					return false, err
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
		case "$and":
			clauses, err := toClauseList(condition)
			if err != nil {
				return false, err
			}
			// An empty $and matches vacuously.
			for _, sub := range clauses {
				ok, err := sub.Matches(e, reg)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
		case "$not":
			sub, ok := toClause(condition)
			if !ok {
				return false, WithContext(ErrInvalidData, map[string]interface{}{
					"operator": "$not",
					"reason":   "operand must be a nested clause",
				})
			}
			matched, err := sub.Matches(e, reg)
			if err != nil {
				return false, err
			}
			if matched {
				return false, nil
			}
		default:
			ok, err := matchField(e, key, condition, reg)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// matchField evaluates one field condition. All operators present on the
// field must succeed.
func matchField(e Entity, field string, condition interface{}, reg *Registry) (bool, error) {
	value, present := fieldValue(e, field)

	ops, isOps := operatorObject(condition)
	if !isOps {
		// Direct equality with a literal.
		return equalValues(value, condition), nil
	}

	for name, operand := range ops {
		ok, err := matchOperator(name, value, present, operand, reg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchOperator(name string, value interface{}, present bool, operand interface{}, reg *Registry) (bool, error) {
	switch name {
	case opEq:
		return equalValues(value, operand), nil
	case opNe:
		return !equalValues(value, operand), nil
	case opExists:
		want, _ := operand.(bool)
		return present == want, nil
	case opGt, opGte, opLt, opLte:
		if !present || value == nil {
			return false, nil
		}
		return matchComparison(name, value, operand), nil
	case opIn:
		list, ok := operand.([]interface{})
		if !ok {
			return false, WithContext(ErrInvalidData, map[string]interface{}{
				"operator": opIn,
				"reason":   "operand must be an array",
			})
		}
		for _, item := range list {
			if equalValues(value, item) {
				return true, nil
			}
		}
		return false, nil
	case opNin:
		list, ok := operand.([]interface{})
		if !ok {
			return false, WithContext(ErrInvalidData, map[string]interface{}{
				"operator": opNin,
				"reason":   "operand must be an array",
			})
		}
		for _, item := range list {
			if equalValues(value, item) {
				return false, nil
			}
		}
		return true, nil
	case opSearch:
		if !present {
			return false, nil
		}
		text, ok := value.(string)
		if !ok {
			return false, nil
		}
		query, ok := operand.(string)
		if !ok {
			return false, WithContext(ErrInvalidData, map[string]interface{}{
				"operator": opSearch,
				"reason":   "operand must be a string",
			})
		}
		return searchMatch(text, query), nil
	default:
		if reg != nil {
			if fn, ok := reg.Operators[name]; ok {
				return fn(value, operand)
			}
		}
		return false, WithContext(ErrUnknownOperator, map[string]interface{}{
			"operator": name,
		})
	}
}

func matchComparison(op string, value, operand interface{}) bool {
	// Numbers compare numerically, strings lexically; mixed or
	// non-comparable types never match.
	fv, fok := toFloat(value)
	fo, ook := toFloat(operand)
	if fok && ook {
		return compareOrdered(op, fv, fo)
	}
	sv, sok := value.(string)
	so, osok := operand.(string)
	if sok && osok {
		return compareOrdered(op, sv, so)
	}
	return false
}

func compareOrdered[T float64 | string](op string, a, b T) bool {
	switch op {
	case opGt:
		return a > b
	case opGte:
		return a >= b
	case opLt:
		return a < b
	case opLte:
		return a <= b
	}
	return false
}

// searchMatch tokenizes both sides and requires every query token to equal
// or be a prefix of some field token.
func searchMatch(text, query string) bool {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return true
	}
	fieldTokens := tokenize(text)
	for _, qt := range queryTokens {
		found := false
		for _, ft := range fieldTokens {
			if strings.HasPrefix(ft, qt) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// operatorObject reports whether the condition is an operator object: a
// map whose keys all start with '$'.
func operatorObject(condition interface{}) (map[string]interface{}, bool) {
	obj, ok := asObject(condition)
	if !ok || len(obj) == 0 {
		return nil, false
	}
	for key := range obj {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return obj, true
}

func toClause(v interface{}) (Where, bool) {
	switch c := v.(type) {
	case Where:
		return c, true
	case map[string]interface{}:
		return Where(c), true
	default:
		return nil, false
	}
}

func toClauseList(v interface{}) ([]Where, error) {
	switch list := v.(type) {
	case []Where:
		return list, nil
	case []interface{}:
		out := make([]Where, 0, len(list))
		for _, item := range list {
			c, ok := toClause(item)
			if !ok {
				return nil, WithContext(ErrInvalidData, map[string]interface{}{
					"reason": "combinator operand must be an array of clauses",
				})
			}
			out = append(out, c)
		}
		return out, nil
	case []map[string]interface{}:
		out := make([]Where, 0, len(list))
		for _, item := range list {
			out = append(out, Where(item))
		}
		return out, nil
	default:
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"reason": "combinator operand must be an array of clauses",
		})
	}
}
