package docbase

// Update operator names.
const (
	uopSet       = "$set"
	uopIncrement = "$increment"
	uopDecrement = "$decrement"
	uopMultiply  = "$multiply"
	uopAppend    = "$append"
	uopPrepend   = "$prepend"
	uopRemove    = "$remove"
	uopToggle    = "$toggle"
)

// applyUpdateSpec derives the replacement entity for an update. Each field
// of the spec carries either a per-field operator object or a literal
// value; literals deep-merge with the existing value (nested objects merge
// recursively, preserving unspecified sibling fields). The existing entity
// is never mutated.
func applyUpdateSpec(existing Entity, spec map[string]interface{}) (Entity, error) {
	next := existing.Clone()
	for field, condition := range spec {
		ops, isOps := operatorObject(condition)
		if !isOps {
			applyLiteral(next, field, condition)
			continue
		}
		for op, operand := range ops {
			if err := applyFieldOp(next, field, op, operand); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

func applyLiteral(e Entity, field string, value interface{}) {
	current, _ := fieldValue(e, field)
	srcObj, srcIsObj := asObject(value)
	dstObj, dstIsObj := asObject(current)
	if srcIsObj && dstIsObj {
		setFieldValue(e, field, deepMerge(dstObj, srcObj))
		return
	}
	setFieldValue(e, field, deepCopyValue(value))
}

func applyFieldOp(e Entity, field, op string, operand interface{}) error {
	current, present := fieldValue(e, field)

	switch op {
	case uopSet:
		setFieldValue(e, field, deepCopyValue(operand))
		return nil

	case uopIncrement, uopDecrement, uopMultiply:
		delta, ok := toFloat(operand)
		if !ok {
			return opError(field, op, "operand must be numeric")
		}
		base := 0.0
		if present && current != nil {
			f, ok := toFloat(current)
			if !ok {
				return opError(field, op, "field is not numeric")
			}
			base = f
		}
		switch op {
		case uopIncrement:
			setFieldValue(e, field, base+delta)
		case uopDecrement:
			setFieldValue(e, field, base-delta)
		case uopMultiply:
			setFieldValue(e, field, base*delta)
		}
		return nil

	case uopAppend, uopPrepend:
		if s, ok := current.(string); ok {
			operandStr, ok := operand.(string)
			if !ok {
				return opError(field, op, "operand must be a string for a string field")
			}
			if op == uopAppend {
				setFieldValue(e, field, s+operandStr)
			} else {
				setFieldValue(e, field, operandStr+s)
			}
			return nil
		}
		if list, ok := current.([]interface{}); ok {
			item := deepCopyValue(operand)
			if op == uopAppend {
				setFieldValue(e, field, append(append([]interface{}{}, list...), item))
			} else {
				setFieldValue(e, field, append([]interface{}{item}, list...))
			}
			return nil
		}
		if !present || current == nil {
			setFieldValue(e, field, []interface{}{deepCopyValue(operand)})
			return nil
		}
		return opError(field, op, "field is neither string nor array")

	case uopRemove:
		list, ok := current.([]interface{})
		if !ok {
			return opError(field, op, "field is not an array")
		}
		out := make([]interface{}, 0, len(list))
		for _, item := range list {
			if !equalValues(item, operand) {
				out = append(out, item)
			}
		}
		setFieldValue(e, field, out)
		return nil

	case uopToggle:
		b, _ := current.(bool)
		setFieldValue(e, field, !b)
		return nil

	default:
		return opError(field, op, "unknown update operator")
	}
}

func opError(field, op, reason string) error {
	return WithContext(ErrOperation, map[string]interface{}{
		"field":    field,
		"operator": op,
		"reason":   reason,
	})
}
