package auth

import (
	"context"

	"github.com/dukerupert/tally/internal/model"
)

type contextKey struct{}

// Subject is the authenticated principal of a request. Role is read from the
// users table on every request, never from the session.
type Subject struct {
	UserID    int64
	Name      string
	Email     string
	Role      model.Role
	SessionID int64
}

func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(contextKey{}).(Subject)
	return s, ok
}

func UserID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.UserID
}

func IsManager(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.Role == model.RoleManager
}

type ipKey struct{}

// WithClientIP records the caller's address for the activity log.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}
