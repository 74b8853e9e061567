// Package auth carries the per-request identity resolved by the session
// middleware through context.Context.
package auth

import (
	"context"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// Outcome classifies how the session boundary treated a request.
type Outcome string

const (
	OutcomeNone    Outcome = "authenticated"
	OutcomeMissing Outcome = "missing"
	OutcomeInvalid Outcome = "invalid"
	OutcomeExpired Outcome = "expired"
)

// Transport records where the access token was read from.
type Transport string

const (
	TransportCookie Transport = "cookie"
	TransportHeader Transport = "header"
)

// Identity is the authenticated caller of the current request.
type Identity struct {
	User      *domain.User
	Claims    *domain.TokenClaims
	Transport Transport
}

// IsAdmin reports whether the token presented on this request grants admin.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Claims != nil && id.Claims.IsSuperUser
}

type ctxKey struct{}

type state struct {
	identity *Identity
	outcome  Outcome
}

// WithIdentity stores a resolved identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, state{identity: id, outcome: OutcomeNone})
}

// WithOutcome records a failed or absent authentication.
func WithOutcome(ctx context.Context, outcome Outcome) context.Context {
	return context.WithValue(ctx, ctxKey{}, state{outcome: outcome})
}

// FromContext returns the identity, or nil when the request is anonymous.
func FromContext(ctx context.Context) *Identity {
	s, _ := ctx.Value(ctxKey{}).(state)
	return s.identity
}

// OutcomeFrom returns the recorded outcome. A context the session middleware
// never saw reports OutcomeMissing.
func OutcomeFrom(ctx context.Context) Outcome {
	s, ok := ctx.Value(ctxKey{}).(state)
	if !ok {
		return OutcomeMissing
	}
	return s.outcome
}
