package types

import "context"

// Actions passed to an Authorizer.
const (
	ActionReadDataset  = "dataset:read"
	ActionWriteDataset = "dataset:write"
	ActionWriteProject = "project:write"
)

// Authorizer decides whether the caller in ctx may perform action inside a
// teamspace. Identity lives in ctx and is owned by the session service.
type Authorizer interface {
	Authorize(ctx context.Context, teamspaceID, action string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, teamspaceID, action string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, teamspaceID, action string) error {
	return f(ctx, teamspaceID, action)
}

// AllowAll authorizes every action. It is the default when no Authorizer is
// configured.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, string, string) error {
	return nil
})
