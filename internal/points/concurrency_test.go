package points

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

func TestConcurrentPurchaseOfLastUnit(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	f.newItem(t, f.sponsor, "last-one", 30, 1)

	const buyers = 8
	drivers := make([]Driver, buyers)
	for i := range drivers {
		drivers[i] = f.newDriver(t, f.sponsor, fmt.Sprintf("driver%d", i), 100)
	}

	var succeeded, outOfStock atomic.Int32
	var g errgroup.Group
	for _, d := range drivers {
		g.Go(func() error {
			_, err := f.engine.Purchase(ctx, d, "last-one")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrOutOfStock):
				outOfStock.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(buyers-1), outOfStock.Load())
	assert.Equal(t, int64(0), f.stock(t, f.sponsor, "last-one"))

	var spent int64
	for _, d := range drivers {
		spent += 100 - f.balance(t, f.sponsor, d)
	}
	assert.Equal(t, int64(30), spent)
	f.requireConsistent(t)
}

func TestConcurrentPurchasesShareOneBalance(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()
	d := f.newDriver(t, f.sponsor, "dave", 50)
	f.newItem(t, f.sponsor, "gadget", 30, 10)

	var succeeded, broke atomic.Int32
	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			_, err := f.engine.Purchase(ctx, d, "gadget")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientFunds):
				broke.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(3), broke.Load())
	assert.Equal(t, int64(20), f.balance(t, f.sponsor, d))
	assert.Equal(t, int64(9), f.stock(t, f.sponsor, "gadget"))
	f.requireConsistent(t)
}

// TestRandomOperationsKeepLedgerConsistent applies random sequences of
// adjustments, purchases and cancellations and checks after every step that
// each balance equals its ledger sum and no stock went negative.
func TestRandomOperationsKeepLedgerConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(20261018))

	allow := true
	other := f.newSponsor(t, "Loose Policy Lines")
	_, err := store.NewPolicyStore(f.db).SetSponsorSettings(ctx, other.SponsorID,
		store.SponsorSettings{AllowNegativePoints: &allow}, other.UserID)
	require.NoError(t, err)

	type member struct {
		sp Sponsor
		d  Driver
	}
	var members []member
	for i, sp := range []Sponsor{f.sponsor, other} {
		for j := range 3 {
			d := f.newDriver(t, sp, fmt.Sprintf("s%dd%d", i, j), int64(rng.Intn(80)))
			members = append(members, member{sp, d})
		}
		for k := range 3 {
			f.newItem(t, sp, fmt.Sprintf("s%di%d", i, k), int64(10+rng.Intn(40)), int64(rng.Intn(3)))
		}
	}

	orders := store.NewOrderStore(f.db)
	for step := range 300 {
		m := members[rng.Intn(len(members))]
		var err error
		switch rng.Intn(4) {
		case 0:
			_, err = f.engine.AddPoints(ctx, m.sp, m.d.UserID, int64(1+rng.Intn(50)), "Random credit")
		case 1:
			_, err = f.engine.DeductPoints(ctx, m.sp, m.d.UserID, int64(1+rng.Intn(50)), "Random debit")
		case 2:
			i := 0
			if m.sp == other {
				i = 1
			}
			_, err = f.engine.Purchase(ctx, m.d, fmt.Sprintf("s%di%d", i, rng.Intn(3)))
		case 3:
			list, lerr := orders.ListByDriver(ctx, m.d.UserID)
			require.NoError(t, lerr)
			if len(list) == 0 {
				continue
			}
			o := list[rng.Intn(len(list))]
			_, err = f.engine.CancelOrder(ctx, m.d, o.ID)
			if o.Status != model.OrderPending {
				require.ErrorIs(t, err, ErrInvalidState, "step %d", step)
				err = nil
			}
		}
		if err != nil && !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrOutOfStock) {
			t.Fatalf("step %d: unexpected error: %v", step, err)
		}
		f.requireConsistent(t)

		if m.sp == f.sponsor {
			require.GreaterOrEqual(t, f.balance(t, m.sp, m.d), int64(0), "step %d", step)
		}
	}
}
