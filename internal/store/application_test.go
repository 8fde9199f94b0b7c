package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/roadpoints/internal/model"
)

func TestApplicationApproveEnrolls(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sp := createSponsor(t, db, "Acme Freight")
	d := createDriver(t, db, "dave")
	as := NewApplicationStore(db)

	app, err := as.Create(ctx, d.ID, sp.ID, "D1234567", "2019 Volvo VNL")
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	if app.Status != model.ApplicationPending {
		t.Errorf("status = %q, want %q", app.Status, model.ApplicationPending)
	}
	if app.Username != "dave" {
		t.Errorf("username = %q, want %q", app.Username, "dave")
	}

	approved, err := as.Approve(ctx, app.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.ApplicationApproved {
		t.Errorf("status = %q, want %q", approved.Status, model.ApplicationApproved)
	}

	m, err := NewSponsorDriverStore(db).GetByDriver(ctx, d.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m == nil || m.SponsorID != sp.ID || m.TotalPoints != 0 {
		t.Fatalf("membership = %+v, want sponsor %d with 0 points", m, sp.ID)
	}

	if _, err := as.Approve(ctx, app.ID); !errors.Is(err, ErrApplicationClosed) {
		t.Errorf("second approve err = %v, want ErrApplicationClosed", err)
	}
}

func TestApplicationDuplicatePending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sp := createSponsor(t, db, "Acme Freight")
	d := createDriver(t, db, "dave")
	as := NewApplicationStore(db)

	if _, err := as.Create(ctx, d.ID, sp.ID, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := as.Create(ctx, d.ID, sp.ID, "", ""); !errors.Is(err, ErrPendingApplication) {
		t.Errorf("err = %v, want ErrPendingApplication", err)
	}
}

func TestApplicationEnrolledDriverCannotApply(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := createSponsor(t, db, "Acme Freight")
	b := createSponsor(t, db, "Bolt Logistics")
	d := createDriver(t, db, "dave")

	if _, err := NewSponsorDriverStore(db).Enroll(ctx, a.ID, d.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := NewApplicationStore(db).Create(ctx, d.ID, b.ID, "", ""); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Errorf("err = %v, want ErrAlreadyEnrolled", err)
	}
}

func TestApplicationReject(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sp := createSponsor(t, db, "Acme Freight")
	d := createDriver(t, db, "dave")
	as := NewApplicationStore(db)

	app, err := as.Create(ctx, d.ID, sp.ID, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rejected, err := as.Reject(ctx, app.ID, "Invalid License", "License number could not be verified.")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.ApplicationRejected {
		t.Errorf("status = %q, want %q", rejected.Status, model.ApplicationRejected)
	}
	if rejected.RejectionCategory == nil || *rejected.RejectionCategory != "Invalid License" {
		t.Errorf("category = %v, want Invalid License", rejected.RejectionCategory)
	}

	pending, err := as.ListBySponsor(ctx, sp.ID, model.ApplicationPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	missing, err := as.Reject(ctx, 9999, "Other", "No such application here.")
	if err != nil {
		t.Fatalf("reject missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing application, got %+v", missing)
	}
}
