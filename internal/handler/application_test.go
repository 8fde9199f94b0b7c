package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

func newApplicationHandler(env *testEnv) *ApplicationHandler {
	return NewApplicationHandler(store.NewApplicationStore(env.db), store.NewSponsorStore(env.db), discardLogger())
}

func TestApplyAndApprove(t *testing.T) {
	env := newTestEnv(t)
	h := newApplicationHandler(env)
	applicant := env.newDriver(t, 0, "riley")

	rec := serve(t, h.Apply, call{method: http.MethodPost, target: "/", as: applicant,
		body: applyRequest{SponsorID: env.sponsor.SponsorID, LicenseNumber: " D123 ", Vehicle: "Box truck"}})
	expectStatus(t, rec, http.StatusCreated)
	app := decodeBody[model.DriverApplication](t, rec)
	if app.Status != model.ApplicationPending || app.LicenseNumber != "D123" {
		t.Errorf("application = %+v", app)
	}

	rec = serve(t, h.Apply, call{method: http.MethodPost, target: "/", as: applicant,
		body: applyRequest{SponsorID: env.sponsor.SponsorID}})
	expectStatus(t, rec, http.StatusConflict)

	rec = serve(t, h.ListSponsor, call{target: "/?status=pending", as: env.sponsor})
	expectStatus(t, rec, http.StatusOK)
	pending := decodeBody[[]model.DriverApplication](t, rec)
	if len(pending) != 1 || pending[0].Username != "riley" {
		t.Fatalf("pending = %+v", pending)
	}

	id := strconv.FormatInt(app.ID, 10)
	rec = serve(t, h.Approve, call{method: http.MethodPost, target: "/", as: env.sponsor, path: map[string]string{"id": id}})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[model.DriverApplication](t, rec); got.Status != model.ApplicationApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}

	m, err := store.NewSponsorDriverStore(env.db).GetByDriver(context.Background(), applicant.UserID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m == nil || m.SponsorID != env.sponsor.SponsorID || m.TotalPoints != 0 {
		t.Fatalf("membership = %+v, want enrolled with zero points", m)
	}

	rec = serve(t, h.Approve, call{method: http.MethodPost, target: "/", as: env.sponsor, path: map[string]string{"id": id}})
	expectStatus(t, rec, http.StatusConflict)

	rec = serve(t, h.ListMine, call{target: "/", as: applicant})
	expectStatus(t, rec, http.StatusOK)
	if mine := decodeBody[[]model.DriverApplication](t, rec); len(mine) != 1 {
		t.Errorf("driver applications = %d, want 1", len(mine))
	}
}

func TestApplyEnrolledDriver(t *testing.T) {
	env := newTestEnv(t)
	h := newApplicationHandler(env)

	rec := serve(t, h.Apply, call{method: http.MethodPost, target: "/", as: env.driver,
		body: applyRequest{SponsorID: env.sponsor.SponsorID}})
	expectStatus(t, rec, http.StatusConflict)

	rec = serve(t, h.Apply, call{method: http.MethodPost, target: "/", as: env.driver,
		body: applyRequest{SponsorID: 9999}})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestRejectApplication(t *testing.T) {
	env := newTestEnv(t)
	h := newApplicationHandler(env)
	applicant := env.newDriver(t, 0, "sam")
	other := env.newSponsor(t, "Other Haulage")

	rec := serve(t, h.Apply, call{method: http.MethodPost, target: "/", as: applicant,
		body: applyRequest{SponsorID: env.sponsor.SponsorID}})
	expectStatus(t, rec, http.StatusCreated)
	id := strconv.FormatInt(decodeBody[model.DriverApplication](t, rec).ID, 10)
	path := map[string]string{"id": id}

	tests := []struct {
		name string
		as   bool
		req  rejectRequest
		want int
	}{
		{"unknown category", true, rejectRequest{Category: "Bad Vibes", Reason: "Not a fit for the fleet"}, http.StatusBadRequest},
		{"short reason", true, rejectRequest{Category: "Other", Reason: "  no  "}, http.StatusBadRequest},
		{"long reason", true, rejectRequest{Category: "Other", Reason: strings.Repeat("x", 501)}, http.StatusBadRequest},
		{"other sponsor", false, rejectRequest{Category: "Other", Reason: "Not a fit for the fleet"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := env.sponsor
			if !tt.as {
				as = other
			}
			rec := serve(t, h.Reject, call{method: http.MethodPost, target: "/", as: as, body: tt.req, path: path})
			expectStatus(t, rec, tt.want)
		})
	}

	rec = serve(t, h.Reject, call{method: http.MethodPost, target: "/", as: env.sponsor, path: path,
		body: rejectRequest{Category: "Invalid License", Reason: "License expired last year"}})
	expectStatus(t, rec, http.StatusOK)
	got := decodeBody[model.DriverApplication](t, rec)
	if got.Status != model.ApplicationRejected || got.RejectionCategory == nil || *got.RejectionCategory != "Invalid License" {
		t.Errorf("rejected application = %+v", got)
	}
}
