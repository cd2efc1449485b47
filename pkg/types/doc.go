// Package types defines the entities, the closed set of value kinds, the
// Engine interfaces, and the standard error types of the mapforms dataset
// engine.
//
// Every dataset value belongs to exactly one Kind. The Kind of a column is
// fixed when the column is created, and all code that reads or writes cells
// dispatches on the column's Kind rather than on the shape of a value.
// Registry.Validate is the single entry point that turns caller input into a
// typed Value.
package types
