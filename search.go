package docbase

import "strings"

// SearchIndex is an inverted token index over the declared searchable
// fields of a collection. It maps each token to the set of entity ids
// whose searchable text contains it, and backs the $search operator's
// index-accelerated path.
type SearchIndex struct {
	fields []string
	tokens map[string]map[string]struct{}
}

// NewSearchIndex builds a search index over the given entities.
func NewSearchIndex(fields []string, entities map[string]Entity) *SearchIndex {
	s := &SearchIndex{
		fields: fields,
		tokens: make(map[string]map[string]struct{}),
	}
	for _, e := range entities {
		s.Add(e)
	}
	return s
}

// Fields returns the searchable field paths.
func (s *SearchIndex) Fields() []string {
	return s.fields
}

// Covers reports whether the given field path is searchable.
func (s *SearchIndex) Covers(field string) bool {
	for _, f := range s.fields {
		if f == field {
			return true
		}
	}
	return false
}

func (s *SearchIndex) entityTokens(e Entity) []string {
	var tokens []string
	for _, field := range s.fields {
		v, ok := fieldValue(e, field)
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		tokens = append(tokens, tokenize(str)...)
	}
	return tokens
}

// Add indexes the searchable text of an entity.
func (s *SearchIndex) Add(e Entity) {
	id := e.ID()
	for _, token := range s.entityTokens(e) {
		set, exists := s.tokens[token]
		if !exists {
			set = make(map[string]struct{})
			s.tokens[token] = set
		}
		set[id] = struct{}{}
	}
}

// Remove drops an entity's tokens from the index.
func (s *SearchIndex) Remove(e Entity) {
	id := e.ID()
	for _, token := range s.entityTokens(e) {
		set, exists := s.tokens[token]
		if !exists {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(s.tokens, token)
		}
	}
}

// Update re-indexes an entity after a change.
func (s *SearchIndex) Update(old, new Entity) {
	s.Remove(old)
	s.Add(new)
}

// Candidates returns the ids of entities matching the query: every query
// token must equal or be a prefix of some indexed token of the entity.
// Returns nil when the query tokenizes to nothing.
func (s *SearchIndex) Candidates(query string) map[string]struct{} {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var result map[string]struct{}
	for _, qt := range queryTokens {
		// Union of ids whose token starts with the query token.
		matched := make(map[string]struct{})
		for token, ids := range s.tokens {
			if strings.HasPrefix(token, qt) {
				for id := range ids {
					matched[id] = struct{}{}
				}
			}
		}
		if result == nil {
			result = matched
			continue
		}
		// Intersect: all query tokens must match.
		for id := range result {
			if _, ok := matched[id]; !ok {
				delete(result, id)
			}
		}
		if len(result) == 0 {
			return result
		}
	}
	return result
}

// clone returns a deep copy for transaction overlays.
func (s *SearchIndex) clone() *SearchIndex {
	out := &SearchIndex{
		fields: s.fields,
		tokens: make(map[string]map[string]struct{}, len(s.tokens)),
	}
	for token, set := range s.tokens {
		copied := make(map[string]struct{}, len(set))
		for id := range set {
			copied[id] = struct{}{}
		}
		out.tokens[token] = copied
	}
	return out
}

// tokenize case-folds text and splits it on runs of non-alphanumeric
// characters.
func tokenize(s string) []string {
	lower := strings.ToLower(s)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isAlphanumeric(r)
	})
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
