package points

import (
	"context"
	"time"
)

type EventType string

const (
	EventPointsChanged  EventType = "points_changed"
	EventOrderCreated   EventType = "order_created"
	EventOrderCancelled EventType = "order_cancelled"
	EventOrderFulfilled EventType = "order_fulfilled"
)

// Event describes a committed change. Observers only ever see changes that
// are durable.
type Event struct {
	Type      EventType `json:"type"`
	SponsorID int64     `json:"sponsor_id"`
	DriverID  int64     `json:"driver_id"`
	OrderID   int64     `json:"order_id,omitempty"`
	Delta     int64     `json:"delta,omitempty"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason,omitempty"`
	ItemTitle string    `json:"item_title,omitempty"`
	At        time.Time `json:"at"`
}

type Observer interface {
	Notify(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

func (e *Engine) emit(ctx context.Context, evs ...Event) {
	for _, ev := range evs {
		for _, o := range e.observers {
			o.Notify(ctx, ev)
		}
	}
}
