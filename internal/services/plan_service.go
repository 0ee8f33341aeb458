package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"risparmi/internal/adjust"
	"risparmi/internal/core"
	"risparmi/internal/export"
	"risparmi/internal/ingest"
	applog "risparmi/internal/log"
)

// Recorder receives every successful plan, e.g. history storage or an
// event publisher.
type Recorder interface {
	Record(ctx context.Context, p core.Plan) error
}

// Observer counts plan outcomes.
type Observer interface {
	ObservePlan(strategy, outcome string)
}

// Result is a finished plan plus its CSV rendition.
type Result struct {
	Plan core.Plan
	CSV  *bytes.Reader
}

// PlanService runs the ingest, adjust and export pipeline.
type PlanService struct {
	planner   adjust.Planner
	recorders []Recorder
	closers   []io.Closer
	observer  Observer
	logger    *applog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*PlanService)

// WithRecorder adds r to the recorders notified after each plan. If r is an
// io.Closer it is closed by PlanService.Close.
func WithRecorder(r Recorder) Option {
	return func(s *PlanService) {
		s.recorders = append(s.recorders, r)
		if c, ok := r.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *PlanService) { s.observer = o }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *PlanService) { s.logger = l.WithComponent(applog.ComponentPlan) }
}

func NewPlanService(planner adjust.Planner, opts ...Option) *PlanService {
	s := &PlanService{
		planner: planner,
		logger:  applog.FromSlog(nil, applog.ComponentPlan),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy reports which planner the service runs.
func (s *PlanService) Strategy() core.Strategy {
	return s.planner.Strategy()
}

// Run reads the uploaded table, adjusts it for goal and excluded and returns
// the plan with its CSV. No partial result is returned on error.
func (s *PlanService) Run(ctx context.Context, filename string, r io.Reader, goal int, excluded string) (Result, error) {
	expenses, err := ingest.ParseUpload(filename, r)
	if err != nil {
		s.observe(err)
		s.logError(ctx, "Failed to read expenses", err, applog.OpIngest, "")
		return Result{}, fmt.Errorf("read expenses: %w", err)
	}

	req, err := core.NewAdjustmentRequest(expenses, goal, excluded)
	if err != nil {
		s.observe(err)
		return Result{}, err
	}
	return s.Adjust(ctx, req)
}

// Adjust runs the planner on an already-built request.
func (s *PlanService) Adjust(ctx context.Context, req core.AdjustmentRequest) (Result, error) {
	out, err := s.planner.Plan(ctx, req)
	if err != nil {
		s.observe(err)
		s.logError(ctx, "Plan failed", err, applog.OpAdjust, out.Reply)
		return Result{}, err
	}

	csv, err := export.Emit(out.Adjusted)
	if err != nil {
		s.observe(err)
		s.logError(ctx, "Failed to emit plan", err, applog.OpExport, "")
		return Result{}, fmt.Errorf("emit csv: %w", err)
	}

	p := core.Plan{
		ID:          s.newID(),
		CreatedAt:   s.now().UTC(),
		Strategy:    s.planner.Strategy(),
		Model:       out.Model,
		SavingsGoal: req.SavingsGoal,
		Excluded:    req.Excluded,
		Original:    req.Expenses,
		Adjusted:    out.Adjusted,
		Reply:       out.Reply,
	}

	for _, rec := range s.recorders {
		if err := rec.Record(ctx, p); err != nil {
			// The caller already has its CSV; recording is best effort.
			s.logError(ctx, "Failed to record plan", err, applog.OpRecord, "")
		}
	}

	applog.NewStructuredLogger(s.logger).LogPlanCreated(ctx, p)
	s.observe(nil)
	return Result{Plan: p, CSV: csv}, nil
}

func (s *PlanService) logError(ctx context.Context, msg string, err error, op, reply string) {
	fields := applog.NewFields()
	fields[applog.FieldErrorType] = ErrorType(err)
	fields[applog.FieldStrategy] = s.planner.Strategy().String()
	if reply != "" {
		fields["reply"] = reply
	}
	applog.NewStructuredLogger(s.logger).LogError(ctx, msg, err, op, fields)
}

func (s *PlanService) observe(err error) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ErrorType(err)
	}
	s.observer.ObservePlan(s.planner.Strategy().String(), outcome)
}

// ErrorType classifies a pipeline error for logs and metrics.
func ErrorType(err error) string {
	var up *core.UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrInvalidInput):
		return applog.ErrorTypeValidation
	case errors.As(err, &up):
		return applog.ErrorTypeUpstream
	case errors.Is(err, core.ErrMalformedOutput):
		return applog.ErrorTypeMalformed
	case errors.Is(err, core.ErrParse), errors.Is(err, core.ErrNonNumeric):
		return applog.ErrorTypeParse
	case errors.Is(err, core.ErrGoalUnreachable):
		return "goal_unreachable"
	default:
		return applog.ErrorTypeInternal
	}
}

// Close closes every recorder that holds resources.
func (s *PlanService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close plan service: %w", errors.Join(errs...))
	}
	return nil
}
