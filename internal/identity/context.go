package identity

import "context"

// Identity describes the authenticated caller for the lifetime of a request.
// PatientID/DentistID are set when the account is linked to a profile.
type Identity struct {
	UserID    string
	Role      Role
	PatientID string
	DentistID string
}

type contextKey struct{}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the caller identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
