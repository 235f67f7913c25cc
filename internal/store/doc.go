// Package store provides the persisted metadata and comment tables.
//
// The json backend is the canonical on-disk contract: one JSON object
// per table, keyed by logical path, read fully into memory and
// rewritten fully (write-temp-then-rename) on every mutation, with a
// single writer lock per table. The sqlite backend trades that for an
// embedded database behind the same interface; memory backs tests.
package store
