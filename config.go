package docbase

// RelKind distinguishes the two relationship directions.
type RelKind string

const (
	// RelRef is a forward foreign key: the collection declaring it holds
	// the foreign-key field pointing at the target collection.
	RelRef RelKind = "ref"
	// RelInverse is a virtual reverse lookup: the target collection holds
	// the foreign-key field pointing back at this one.
	RelInverse RelKind = "inverse"
)

// CascadePolicy selects what happens to dependents when the entity they
// reference is deleted.
type CascadePolicy string

const (
	CascadeRestrict   CascadePolicy = "restrict"
	CascadeDelete     CascadePolicy = "cascade"
	CascadeSoftDelete CascadePolicy = "cascade_soft"
	CascadeSetNull    CascadePolicy = "set_null"
	CascadePreserve   CascadePolicy = "preserve"
)

// Relationship declares an association between two collections.
// For RelRef, ForeignKey names the field on this collection; for
// RelInverse, it names the field on the Target collection that points
// back here. OnDelete applies to the ref side and defaults to restrict.
type Relationship struct {
	Name       string
	Kind       RelKind
	Target     string
	ForeignKey string
	Required   bool
	OnDelete   CascadePolicy
}

// CollectionConfig declares one collection: its indexes, constraints,
// relationships and lifecycle hooks. Configuration is fixed at engine
// startup.
type CollectionConfig struct {
	Name            string
	Indexes         []IndexDefinition
	SearchFields    []string
	Unique          [][]string
	Relationships   []Relationship
	SoftDeleteField string
	IDGenerator     string
	Validator       Validator
	Hooks           CollectionHooks
}

// Validate checks the collection configuration
func (c CollectionConfig) Validate() error {
	if c.Name == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Name",
			"reason": "collection name must not be empty",
		})
	}
	for _, def := range c.Indexes {
		if len(def.Fields) == 0 {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"collection": c.Name,
				"field":      "Indexes",
				"reason":     "index definition needs at least one field",
			})
		}
	}
	for _, set := range c.Unique {
		if len(set) == 0 {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"collection": c.Name,
				"field":      "Unique",
				"reason":     "unique constraint needs at least one field",
			})
		}
	}
	for _, rel := range c.Relationships {
		if rel.Name == "" || rel.Target == "" || rel.ForeignKey == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"collection": c.Name,
				"field":      "Relationships",
				"reason":     "relationship needs name, target and foreign key",
			})
		}
		if rel.Kind != RelRef && rel.Kind != RelInverse {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"collection":   c.Name,
				"relationship": rel.Name,
				"reason":       "kind must be ref or inverse",
			})
		}
		switch rel.OnDelete {
		case "", CascadeRestrict, CascadeDelete, CascadeSoftDelete, CascadeSetNull, CascadePreserve:
		default:
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"collection":   c.Name,
				"relationship": rel.Name,
				"reason":       "unknown cascade policy",
			})
		}
	}
	return nil
}

// Config declares the full engine: every collection and its constraints.
type Config struct {
	Collections []CollectionConfig
}

// Validate checks the whole configuration, including cross-collection
// relationship targets.
func (c Config) Validate() error {
	names := make(map[string]bool, len(c.Collections))
	for _, col := range c.Collections {
		if err := col.Validate(); err != nil {
			return err
		}
		if names[col.Name] {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"collection": col.Name,
				"reason":     "duplicate collection name",
			})
		}
		names[col.Name] = true
	}
	for _, col := range c.Collections {
		for _, rel := range col.Relationships {
			if !names[rel.Target] {
				return WithContext(ErrInvalidConfig, map[string]interface{}{
					"collection":   col.Name,
					"relationship": rel.Name,
					"reason":       "relationship target is not a configured collection",
					"target":       rel.Target,
				})
			}
		}
	}
	return nil
}

// relationship resolves a declared relationship by name.
func (c CollectionConfig) relationship(name string) (Relationship, bool) {
	for _, rel := range c.Relationships {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relationship{}, false
}
