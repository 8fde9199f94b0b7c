package email

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
)

const sendTimeout = 15 * time.Second

// Users resolves a driver's contact address.
type Users interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Notifier mails drivers about their orders. It runs as an engine observer;
// delivery happens in the background and failures are only logged.
type Notifier struct {
	client *Client
	users  Users
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewNotifier(client *Client, users Users, logger *slog.Logger) *Notifier {
	return &Notifier{
		client: client,
		users:  users,
		logger: logger.With("component", "email"),
	}
}

func (n *Notifier) Notify(_ context.Context, ev points.Event) {
	if !n.client.Configured() {
		return
	}
	if ev.Type != points.EventOrderCreated && ev.Type != points.EventOrderCancelled {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		n.deliver(ctx, ev)
	}()
}

func (n *Notifier) deliver(ctx context.Context, ev points.Event) {
	log := n.logger.With("order_id", ev.OrderID, "driver_id", ev.DriverID, "event", ev.Type)

	u, err := n.users.GetByID(ctx, ev.DriverID)
	if err != nil {
		log.Error("lookup driver", "error", err)
		return
	}
	if u == nil || u.Email == "" {
		log.Warn("driver has no email address")
		return
	}

	amount := ev.Delta
	if amount < 0 {
		amount = -amount
	}
	var msg Message
	if ev.Type == points.EventOrderCreated {
		msg = n.client.OrderPlaced(u.Email, ev.OrderID, ev.ItemTitle, amount, ev.Balance)
	} else {
		msg = n.client.OrderCancelled(u.Email, ev.OrderID, ev.ItemTitle, amount, ev.Balance)
	}

	if err := n.client.Send(ctx, msg); err != nil {
		log.Error("send order email", "error", err)
		return
	}
	log.Info("order email sent")
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
