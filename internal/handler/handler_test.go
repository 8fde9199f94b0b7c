package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/database"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	db      *sql.DB
	engine  *points.Engine
	sponsor auth.AuthContext
	driver  auth.AuthContext
}

// newTestEnv creates one sponsor with a sponsor user and one enrolled driver.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, engine: points.NewEngine(db, points.WithLogger(discardLogger()))}
	env.sponsor = env.newSponsor(t, "Acme Freight")
	env.driver = env.newDriver(t, env.sponsor.SponsorID, "dana")
	return env
}

func (e *testEnv) newSponsor(t *testing.T, name string) auth.AuthContext {
	t.Helper()
	ctx := context.Background()
	sp, err := store.NewSponsorStore(e.db).Create(ctx, name)
	if err != nil {
		t.Fatalf("create sponsor: %v", err)
	}
	u, err := store.NewUserStore(e.db).Create(ctx, store.NewUser{
		Username:     name + " manager",
		Email:        "manager@" + name + ".test",
		PasswordHash: "x",
		Role:         model.RoleSponsor,
		SponsorID:    &sp.ID,
	})
	if err != nil {
		t.Fatalf("create sponsor user: %v", err)
	}
	return auth.AuthContext{UserID: u.ID, Role: model.RoleSponsor, SponsorID: sp.ID}
}

// newDriver creates a driver and enrolls them when sponsorID is non-zero.
func (e *testEnv) newDriver(t *testing.T, sponsorID int64, name string) auth.AuthContext {
	t.Helper()
	ctx := context.Background()
	u, err := store.NewUserStore(e.db).Create(ctx, store.NewUser{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleDriver,
	})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if sponsorID != 0 {
		if _, err := store.NewSponsorDriverStore(e.db).Enroll(ctx, sponsorID, u.ID); err != nil {
			t.Fatalf("enroll driver: %v", err)
		}
	}
	return auth.AuthContext{UserID: u.ID, Role: model.RoleDriver}
}

func (e *testEnv) credit(t *testing.T, driverID, amount int64) {
	t.Helper()
	sp := points.Sponsor{UserID: e.sponsor.UserID, SponsorID: e.sponsor.SponsorID}
	if _, err := e.engine.AddPoints(context.Background(), sp, driverID, amount, "Opening balance"); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

type call struct {
	method string
	target string
	body   any
	as     auth.AuthContext
	path   map[string]string
}

func serve(t *testing.T, h http.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(b)
	}
	method := c.method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, c.target, body)
	if c.as.UserID != 0 {
		req = req.WithContext(auth.WithAuth(req.Context(), c.as))
	}
	for k, v := range c.path {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
