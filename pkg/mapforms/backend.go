// Package mapforms provides the public factory for the mapforms engine.
// Storage and dialect details stay in internal packages.
package mapforms

import (
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/mapforms/internal/store"
	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// Option configures an engine created by NewBackend.
type Option = store.Option

// WithLogger sets the logger the engine reports mutations and lifecycle
// events to. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return store.WithLogger(log)
}

// WithAuthorizer sets the collaborator consulted before every write.
func WithAuthorizer(a types.Authorizer) Option {
	return store.WithAuthorizer(a)
}

// WithRegistry replaces the type registry used to validate cell input.
func WithRegistry(r *types.Registry) Option {
	return store.WithRegistry(r)
}

// NewBackend creates an engine. It is not attached; call Attach with a
// Config before use.
//
// Example:
//
//	engine := mapforms.NewBackend()
//	err := engine.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".mapforms-db",
//	})
//	defer engine.Detach()
func NewBackend(opts ...Option) types.Engine {
	return store.NewBackend(opts...)
}
