package auth

import (
	"context"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
)

type contextKey struct{}

// AuthContext is the verified identity behind a request.
type AuthContext struct {
	UserID    int64
	Role      model.Role
	SponsorID int64
	TokenID   string
	ExpiresAt time.Time
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func SponsorID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.SponsorID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}

// Caller converts the request identity into an engine caller. The second
// result is false when the request carries no identity.
func Caller(ctx context.Context) (points.Caller, bool) {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	switch ac.Role {
	case model.RoleDriver:
		return points.Driver{UserID: ac.UserID}, true
	case model.RoleSponsor:
		return points.Sponsor{UserID: ac.UserID, SponsorID: ac.SponsorID}, true
	case model.RoleAdmin:
		return points.Admin{UserID: ac.UserID}, true
	}
	return nil, false
}
