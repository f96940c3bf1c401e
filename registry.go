package docbase

// OperatorFunc evaluates a plugin-registered query operator against one
// field value. It participates in filter evaluation exactly like a
// built-in operator: all operators present on a field must succeed.
type OperatorFunc func(fieldValue, operand interface{}) (bool, error)

// Registry is the pre-resolved plugin surface consumed by the engine: a
// read-only lookup of custom query operators, named id generators and
// global lifecycle hooks. Plugin loading, validation and conflict
// resolution happen upstream; the engine only consults the result.
type Registry struct {
	Operators    map[string]OperatorFunc
	IDGenerators map[string]IDGenerator
	GlobalHooks  CollectionHooks
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Operators:    make(map[string]OperatorFunc),
		IDGenerators: make(map[string]IDGenerator),
	}
}

// Generator resolves a named id generator, falling back to time-ordered
// UUIDs when the name is empty or unknown.
func (r *Registry) Generator(name string) IDGenerator {
	if r != nil && name != "" {
		if gen, ok := r.IDGenerators[name]; ok {
			return gen
		}
	}
	return NewID
}
