package auth

import (
	"context"
	"testing"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    1,
		Role:      model.RoleSponsor,
		SponsorID: 2,
		TokenID:   "abc",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.SponsorID != 2 {
		t.Errorf("SponsorID = %d, want 2", got.SponsorID)
	}
	if got.Role != model.RoleSponsor {
		t.Errorf("Role = %q, want %q", got.Role, model.RoleSponsor)
	}
	if got.TokenID != "abc" {
		t.Errorf("TokenID = %q, want %q", got.TokenID, "abc")
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected false for missing AuthContext")
	}
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 user for missing context")
	}
	if SponsorID(context.Background()) != 0 {
		t.Error("expected 0 sponsor for missing context")
	}
	if _, ok := Caller(context.Background()); ok {
		t.Error("expected no caller for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithAuth(context.Background(), AuthContext{Role: model.RoleAdmin})) {
		t.Error("expected IsAdmin = true for admin role")
	}
	if IsAdmin(WithAuth(context.Background(), AuthContext{Role: model.RoleDriver})) {
		t.Error("expected IsAdmin = false for driver role")
	}
}

func TestCaller(t *testing.T) {
	tests := []struct {
		ac   AuthContext
		want points.Caller
	}{
		{AuthContext{UserID: 5, Role: model.RoleDriver}, points.Driver{UserID: 5}},
		{AuthContext{UserID: 6, Role: model.RoleSponsor, SponsorID: 3}, points.Sponsor{UserID: 6, SponsorID: 3}},
		{AuthContext{UserID: 7, Role: model.RoleAdmin}, points.Admin{UserID: 7}},
	}
	for _, tt := range tests {
		got, ok := Caller(WithAuth(context.Background(), tt.ac))
		if !ok {
			t.Fatalf("Caller(%+v) ok = false", tt.ac)
		}
		if got != tt.want {
			t.Errorf("Caller(%+v) = %#v, want %#v", tt.ac, got, tt.want)
		}
	}
}
