package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/roadpoints/internal/points"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestNotifyCountsPoints(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.Notify(ctx, points.Event{Type: points.EventPointsChanged, Delta: 15})
	m.Notify(ctx, points.Event{Type: points.EventPointsChanged, Delta: -30})
	m.Notify(ctx, points.Event{Type: points.EventOrderCreated, Delta: -30})

	out := scrape(t, m)
	for _, want := range []string{
		`roadpoints_points_total{direction="credit"} 15`,
		`roadpoints_points_total{direction="debit"} 30`,
		`roadpoints_ledger_events_total{type="order_created"} 1`,
		`roadpoints_ledger_events_total{type="points_changed"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestObserveJob(t *testing.T) {
	m := New()
	m.ObserveJob("accrual", time.Second, 2, nil)
	m.ObserveJob("accrual", time.Second, 0, errors.New("boom"))

	out := scrape(t, m)
	for _, want := range []string{
		`roadpoints_job_runs_total{job="accrual",result="ok"} 1`,
		`roadpoints_job_runs_total{job="accrual",result="error"} 1`,
		`roadpoints_job_row_failures_total{job="accrual"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "GET /api/points", http.StatusOK, 10*time.Millisecond)

	out := scrape(t, m)
	want := `roadpoints_http_requests_total{method="GET",path="GET /api/points",status="200"} 1`
	if !strings.Contains(out, want) {
		t.Errorf("missing %q", want)
	}
}
