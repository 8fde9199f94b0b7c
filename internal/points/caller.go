package points

import "github.com/dukerupert/roadpoints/internal/model"

// Caller identifies who invokes an engine operation. The set of
// implementations is closed: Driver, Sponsor, Admin and System.
type Caller interface {
	// ActorID is written to changed_by_user_id on ledger entries.
	ActorID() int64
	caller()
}

type Driver struct{ UserID int64 }

type Sponsor struct {
	UserID    int64
	SponsorID int64
}

type Admin struct{ UserID int64 }

// System is the scheduler acting without a user.
type System struct{}

func (d Driver) ActorID() int64  { return d.UserID }
func (s Sponsor) ActorID() int64 { return s.UserID }
func (a Admin) ActorID() int64   { return a.UserID }
func (System) ActorID() int64    { return model.SystemActorID }

func (Driver) caller()  {}
func (Sponsor) caller() {}
func (Admin) caller()   {}
func (System) caller()  {}

func requireDriver(c Caller) (Driver, error) {
	d, ok := c.(Driver)
	if !ok {
		return Driver{}, forbidden("operation requires a driver")
	}
	return d, nil
}

func requireSponsor(c Caller) (Sponsor, error) {
	s, ok := c.(Sponsor)
	if !ok {
		return Sponsor{}, forbidden("operation requires a sponsor")
	}
	return s, nil
}

// requireOperator accepts the callers allowed to run batch jobs.
func requireOperator(c Caller) error {
	switch c.(type) {
	case Admin, System:
		return nil
	}
	return forbidden("operation requires an admin")
}
