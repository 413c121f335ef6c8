// Package document holds the replicated aggregate root: every entity
// collection, the relation tables, per-field stamps and tombstones.
//
// A Document returned from a fold is treated as immutable. Reducers clone
// the sections they change and share the rest.
package document
