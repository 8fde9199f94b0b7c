package store

import (
	"context"
	"testing"
)

func TestEnrollStartsAtZero(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sp := createSponsor(t, db, "Acme Freight")
	d := createDriver(t, db, "dave")
	sds := NewSponsorDriverStore(db)

	m, err := sds.Enroll(ctx, sp.ID, d.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if m.SponsorID != sp.ID {
		t.Errorf("sponsor id = %d, want %d", m.SponsorID, sp.ID)
	}
	if m.TotalPoints != 0 {
		t.Errorf("total points = %d, want 0", m.TotalPoints)
	}
	if m.Username != "dave" {
		t.Errorf("username = %q, want %q", m.Username, "dave")
	}
}

func TestEnrollOneSponsorPerDriver(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := createSponsor(t, db, "Acme Freight")
	b := createSponsor(t, db, "Bolt Logistics")
	d := createDriver(t, db, "dave")
	sds := NewSponsorDriverStore(db)

	if _, err := sds.Enroll(ctx, a.ID, d.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := sds.Enroll(ctx, b.ID, d.ID); err == nil {
		t.Fatal("expected error enrolling driver with a second sponsor, got nil")
	}
}

func TestListBySponsor(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := createSponsor(t, db, "Acme Freight")
	b := createSponsor(t, db, "Bolt Logistics")
	sds := NewSponsorDriverStore(db)

	for _, name := range []string{"zoe", "adam"} {
		d := createDriver(t, db, name)
		if _, err := sds.Enroll(ctx, a.ID, d.ID); err != nil {
			t.Fatalf("enroll %s: %v", name, err)
		}
	}
	other := createDriver(t, db, "omar")
	if _, err := sds.Enroll(ctx, b.ID, other.ID); err != nil {
		t.Fatalf("enroll omar: %v", err)
	}

	drivers, err := sds.ListBySponsor(ctx, a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("len = %d, want 2", len(drivers))
	}
	if drivers[0].Username != "adam" {
		t.Errorf("first = %q, want %q", drivers[0].Username, "adam")
	}

	all, err := sds.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len all = %d, want 3", len(all))
	}
}
