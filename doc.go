// Package docbase is an embedded, schema-validated, document-oriented
// database engine. Collections of identified records live entirely
// in-process; each collection is accelerated by declared indexes (single,
// compound, nested-field, and full-text), queried through a composable
// pipeline (filter, sort, select, paginate, aggregate, populate), and
// mutated through CRUD operations that enforce uniqueness and
// referential-integrity constraints atomically.
//
// The engine owns a state cell per collection: an atomically swappable
// id->entity snapshot. Every mutation stages a full replacement snapshot,
// re-checks constraints inside the atomic commit step, and updates the
// collection's indexes and search index under the same lock, so readers
// never observe a half-applied write.
//
// Durable storage, change subscription, and network surfaces are external
// collaborators: the engine consumes an injected schema validator and
// plugin registry, emits change notifications to an injected sink, and
// exposes entity snapshots for an external persistence layer to read.
//
// Basic usage:
//
//	eng, err := docbase.Open(ctx, docbase.Config{
//	    Collections: []docbase.CollectionConfig{
//	        {Name: "authors", Unique: [][]string{{"email"}}},
//	        {Name: "books",
//	            Indexes: []docbase.IndexDefinition{{Fields: []string{"authorId"}}},
//	            Relationships: []docbase.Relationship{
//	                {Name: "author", Kind: docbase.RelRef, Target: "authors", ForeignKey: "authorId"},
//	            }},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	books, _ := eng.Collection("books")
//	results, err := books.Query().
//	    Where(docbase.Where{"year": docbase.Where{"$gte": 2000}}).
//	    Sort("title").
//	    Limit(10).
//	    All(ctx)
package docbase
