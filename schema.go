package docbase

// Validator is the injected schema validation surface. The engine calls
// Validate before every create and update and never bypasses it; Encode
// is the inverse direction, producing the raw shape an external
// persistence layer stores.
type Validator interface {
	Validate(raw interface{}) (Entity, error)
	Encode(e Entity) (interface{}, error)
}

// FieldType names the JSON-shaped types the built-in schema understands.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldObject FieldType = "object"
	FieldArray  FieldType = "array"
	FieldAny    FieldType = "any"
)

// FieldRule constrains one field of a schema.
type FieldRule struct {
	Type     FieldType
	Required bool
}

// Schema is a minimal field-type validator. Real deployments inject a
// richer validator; this one covers type and presence checks and is what
// the engine's own tests use. Fields not declared in the schema pass
// through untouched.
type Schema struct {
	Fields map[string]FieldRule
}

// Validate checks raw input against the schema and returns it as an
// Entity. Failures are reported per field in a ValidationError.
func (s *Schema) Validate(raw interface{}) (Entity, error) {
	e, ok := toEntity(raw)
	if !ok {
		return nil, &ValidationError{Issues: []FieldIssue{
			{Field: "", Message: "input must be an object"},
		}}
	}

	var issues []FieldIssue
	for field, rule := range s.Fields {
		v, present := fieldValue(e, field)
		if !present || v == nil {
			if rule.Required {
				issues = append(issues, FieldIssue{Field: field, Message: "required field missing"})
			}
			continue
		}
		if !typeMatches(rule.Type, v) {
			issues = append(issues, FieldIssue{
				Field:   field,
				Message: "expected " + string(rule.Type),
			})
		}
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return e, nil
}

// Encode returns the raw shape of an entity.
func (s *Schema) Encode(e Entity) (interface{}, error) {
	return map[string]interface{}(e.Clone()), nil
}

func typeMatches(t FieldType, v interface{}) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		_, ok := toFloat(v)
		return ok
	case FieldBool:
		_, ok := v.(bool)
		return ok
	case FieldObject:
		_, ok := asObject(v)
		return ok
	case FieldArray:
		_, ok := v.([]interface{})
		return ok
	default:
		return true
	}
}

// passthroughValidator is used when a collection declares no validator:
// input is coerced to an Entity without schema checks.
type passthroughValidator struct{}

func (passthroughValidator) Validate(raw interface{}) (Entity, error) {
	e, ok := toEntity(raw)
	if !ok {
		return nil, &ValidationError{Issues: []FieldIssue{
			{Field: "", Message: "input must be an object"},
		}}
	}
	return e, nil
}

func (passthroughValidator) Encode(e Entity) (interface{}, error) {
	return map[string]interface{}(e.Clone()), nil
}
