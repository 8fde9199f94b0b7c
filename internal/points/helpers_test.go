package points

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/roadpoints/internal/database"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	db      *sql.DB
	engine  *Engine
	clock   *testClock
	sponsor Sponsor
	events  *eventLog
}

type eventLog struct {
	mu  sync.Mutex
	evs []Event
}

func (l *eventLog) Notify(_ context.Context, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, ev)
}

func (l *eventLog) All() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.evs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture opens an in-memory database with one sponsor.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureAt(t, ":memory:")
}

// newFileFixture uses a database file so concurrent connections share it.
func newFileFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureAt(t, filepath.Join(t.TempDir(), "points.db"))
}

func newFixtureAt(t *testing.T, path string) *fixture {
	t.Helper()
	db, err := database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{t: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	events := &eventLog{}
	f := &fixture{
		db:     db,
		clock:  clock,
		events: events,
		engine: NewEngine(db, WithClock(clock.Now), WithLogger(discardLogger()), WithObserver(events)),
	}
	f.sponsor = f.newSponsor(t, "Acme Freight")
	return f
}

func (f *fixture) newSponsor(t *testing.T, name string) Sponsor {
	t.Helper()
	ctx := context.Background()
	sp, err := store.NewSponsorStore(f.db).Create(ctx, name)
	require.NoError(t, err)
	u, err := store.NewUserStore(f.db).Create(ctx, store.NewUser{
		Username:     name + " admin",
		Email:        "admin" + sp.CompanyName + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleSponsor,
		SponsorID:    &sp.ID,
	})
	require.NoError(t, err)
	return Sponsor{UserID: u.ID, SponsorID: sp.ID}
}

// newDriver enrolls a driver with sp and credits the opening balance.
func (f *fixture) newDriver(t *testing.T, sp Sponsor, name string, balance int64) Driver {
	t.Helper()
	ctx := context.Background()
	u, err := store.NewUserStore(f.db).Create(ctx, store.NewUser{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleDriver,
	})
	require.NoError(t, err)
	_, err = store.NewSponsorDriverStore(f.db).Enroll(ctx, sp.SponsorID, u.ID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.engine.AddPoints(ctx, sp, u.ID, balance, "Opening balance")
		require.NoError(t, err)
	}
	return Driver{UserID: u.ID}
}

func (f *fixture) newItem(t *testing.T, sp Sponsor, itemID string, cost, stock int64) *model.CatalogItem {
	t.Helper()
	item, err := f.engine.UpsertCatalogItem(context.Background(), sp, CatalogItemInput{
		ItemID:        itemID,
		Title:         "Item " + itemID,
		PriceValue:    decimal.NewNullDecimal(decimal.NewFromInt(cost).Div(decimal.NewFromInt(100))),
		PriceCurrency: "USD",
		StockQuantity: stock,
		PointsCost:    cost,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) balance(t *testing.T, sp Sponsor, d Driver) int64 {
	t.Helper()
	b, err := f.engine.Ledger().Balance(context.Background(), sp.SponsorID, d.UserID)
	require.NoError(t, err)
	return b
}

func (f *fixture) stock(t *testing.T, sp Sponsor, itemID string) int64 {
	t.Helper()
	item, err := store.NewCatalogStore(f.db).Get(context.Background(), sp.SponsorID, itemID)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item.StockQuantity
}

func (f *fixture) ledgerCount(t *testing.T, sp Sponsor, d Driver) int {
	t.Helper()
	var n int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM audit_log WHERE sponsor_id = ? AND driver_id = ?`,
		sp.SponsorID, d.UserID).Scan(&n)
	require.NoError(t, err)
	return n
}

func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	drifts, err := f.engine.Ledger().Verify(context.Background())
	require.NoError(t, err)
	require.Empty(t, drifts)

	var negative int
	err = f.db.QueryRow(`SELECT COUNT(*) FROM catalog_items WHERE stock_quantity < 0`).Scan(&negative)
	require.NoError(t, err)
	require.Zero(t, negative)
}
