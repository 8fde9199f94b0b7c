package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/roadpoints/internal/model"
)

// ErrorSink stores upstream failures for later review.
type ErrorSink interface {
	Record(ctx context.Context, e model.APIErrorLog) error
}

// Audited wraps a Source and records each failure against the sponsor that
// triggered it. Recording failures are logged and otherwise ignored.
type Audited struct {
	source Source
	sink   ErrorSink
	logger *slog.Logger
}

func NewAudited(source Source, sink ErrorSink, logger *slog.Logger) *Audited {
	return &Audited{source: source, sink: sink, logger: logger.With("component", "catalog")}
}

func (a *Audited) Search(ctx context.Context, sponsorID int64, query string, limit int) ([]Product, error) {
	products, err := a.source.Search(ctx, query, limit)
	if err != nil {
		a.record(ctx, sponsorID, "search", err)
	}
	return products, err
}

func (a *Audited) Item(ctx context.Context, sponsorID int64, itemID string) (*Product, error) {
	p, err := a.source.Item(ctx, itemID)
	if err != nil {
		a.record(ctx, sponsorID, "item", err)
	}
	return p, err
}

func (a *Audited) record(ctx context.Context, sponsorID int64, op string, err error) {
	a.logger.Warn("marketplace request failed", "sponsor_id", sponsorID, "operation", op, "error", err)
	if errors.Is(err, ErrNotConfigured) {
		return
	}
	entry := model.APIErrorLog{
		SponsorID:  &sponsorID,
		Source:     "ebay",
		Operation:  op,
		StatusCode: StatusCode(err),
		Message:    err.Error(),
	}
	if rerr := a.sink.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		a.logger.Error("record marketplace failure", "error", rerr)
	}
}
