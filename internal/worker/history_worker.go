package worker

import (
	"context"
	"fmt"

	"risparmi/internal/amqp"
	"risparmi/internal/core"
	applog "risparmi/internal/log"
	"risparmi/internal/sheets"
)

// PlanStore persists plans. Saving the same plan twice must be harmless.
type PlanStore interface {
	Save(ctx context.Context, p core.Plan) error
}

// HistoryWorker copies plan.completed events into the local history and,
// when configured, into a spreadsheet.
type HistoryWorker struct {
	store  PlanStore
	sheets sheets.PlanWriter
}

// NewHistoryWorker builds a worker; either destination may be nil but not both.
func NewHistoryWorker(store PlanStore, sheets sheets.PlanWriter) *HistoryWorker {
	return &HistoryWorker{store: store, sheets: sheets}
}

// HandlePlanCompleted saves one event to the history and then exports it.
// The spreadsheet is only written after the plan is stored. Any failure is
// returned so the message is requeued.
func (w *HistoryWorker) HandlePlanCompleted(ctx context.Context, msg *amqp.PlanCompletedMessage) error {
	p := msg.Plan()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)

	logger.InfoContext(ctx, "Processing plan event",
		applog.FieldPlanID, p.ID,
		applog.FieldStrategy, p.Strategy.String(),
		applog.FieldOperation, applog.OpConsume)

	if w.store != nil {
		if err := w.store.Save(ctx, p); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
	}
	if w.sheets != nil {
		ref, err := w.sheets.AppendPlan(ctx, p)
		if err != nil {
			return fmt.Errorf("append plan to sheet: %w", err)
		}
		logger.InfoContext(ctx, "Plan exported to sheet",
			applog.FieldPlanID, p.ID,
			applog.FieldOperation, applog.OpAppend,
			"range", ref)
	}
	return nil
}

// Run consumes events with up to concurrency handlers in flight until ctx
// is cancelled.
func (w *HistoryWorker) Run(ctx context.Context, c *amqp.Client, concurrency int) error {
	return c.ConsumePlans(ctx, concurrency, w.HandlePlanCompleted)
}
