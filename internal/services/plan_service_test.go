package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risparmi/internal/adjust"
	"risparmi/internal/core"
	applog "risparmi/internal/log"
)

type fakePlanner struct {
	out      adjust.Outcome
	err      error
	strategy core.Strategy
	got      core.AdjustmentRequest
	calls    int
}

func (f *fakePlanner) Plan(_ context.Context, req core.AdjustmentRequest) (adjust.Outcome, error) {
	f.calls++
	f.got = req
	return f.out, f.err
}

func (f *fakePlanner) Strategy() core.Strategy {
	if f.strategy == "" {
		return core.StrategyModel
	}
	return f.strategy
}

type fakeRecorder struct {
	plans  []core.Plan
	err    error
	closed bool
}

func (f *fakeRecorder) Record(_ context.Context, p core.Plan) error {
	f.plans = append(f.plans, p)
	return f.err
}

func (f *fakeRecorder) Close() error {
	f.closed = true
	return nil
}

type fakeObserver struct {
	outcomes []string
}

func (f *fakeObserver) ObservePlan(strategy, outcome string) {
	f.outcomes = append(f.outcomes, strategy+"/"+outcome)
}

func newTestService(p adjust.Planner, opts ...Option) (*PlanService, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, nil)})
	s := NewPlanService(p, append([]Option{WithLogger(logger)}, opts...)...)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	s.newID = func() string { return "plan-1" }
	return s, &buf
}

func adjusted(t *testing.T, kv ...string) core.ExpenseMap {
	t.Helper()
	var m core.ExpenseMap
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, m.Set(kv[i], decimal.RequireFromString(kv[i+1])))
	}
	return m
}

func TestRunSuccess(t *testing.T) {
	planner := &fakePlanner{out: adjust.Outcome{
		Adjusted: adjusted(t, "Rent", "860", "Food", "500"),
		Reply:    `{"Rent": 860, "Food": 500}`,
		Model:    "m",
	}}
	rec := &fakeRecorder{}
	obs := &fakeObserver{}
	s, logs := newTestService(planner, WithRecorder(rec), WithObserver(obs))

	csv := "Rent,Food\n1000,300\n200,200\n"
	res, err := s.Run(context.Background(), "expenses.csv", strings.NewReader(csv), 20, " Food ")
	require.NoError(t, err)

	assert.True(t, planner.got.Expenses.Equal(adjusted(t, "Rent", "1200", "Food", "500")))
	assert.Equal(t, 20, planner.got.SavingsGoal)
	assert.Equal(t, "Food", planner.got.Excluded)

	body, err := io.ReadAll(res.CSV)
	require.NoError(t, err)
	assert.Equal(t, "Category,Amount\nRent,860\nFood,500\n", string(body))

	assert.Equal(t, "plan-1", res.Plan.ID)
	assert.Equal(t, core.StrategyModel, res.Plan.Strategy)
	assert.Equal(t, "340", res.Plan.Saved().String())
	require.Len(t, rec.plans, 1)
	assert.Equal(t, res.Plan.ID, rec.plans[0].ID)
	assert.Equal(t, []string{"model/ok"}, obs.outcomes)
	assert.Contains(t, logs.String(), "Savings plan created")
}

func TestRunInvalidInput(t *testing.T) {
	planner := &fakePlanner{}
	obs := &fakeObserver{}
	s, _ := newTestService(planner, WithObserver(obs))

	_, err := s.Run(context.Background(), "x.csv", strings.NewReader("Rent\n10\n"), 10, "  ")
	require.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = s.Run(context.Background(), "x.csv", strings.NewReader("Rent\n10\n"), 101, "Rent")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	assert.Zero(t, planner.calls)
	assert.Equal(t, []string{"model/validation_error", "model/validation_error"}, obs.outcomes)
}

func TestRunParseError(t *testing.T) {
	planner := &fakePlanner{}
	s, _ := newTestService(planner)

	_, err := s.Run(context.Background(), "x.csv", strings.NewReader("Rent\nabc\n"), 10, "Rent")
	require.ErrorIs(t, err, core.ErrNonNumeric)
	assert.Equal(t, applog.ErrorTypeParse, ErrorType(err))
	assert.Zero(t, planner.calls)
}

func TestRunUpstreamFailure(t *testing.T) {
	upstream := &core.UpstreamError{Provider: "huggingface", Err: errors.New("HTTP 503: loading")}
	planner := &fakePlanner{err: upstream}
	rec := &fakeRecorder{}
	s, logs := newTestService(planner, WithRecorder(rec))

	res, err := s.Run(context.Background(), "x.csv", strings.NewReader("Rent,Food\n1,2\n"), 10, "Food")
	require.ErrorIs(t, err, upstream)
	assert.Equal(t, "huggingface: HTTP 503: loading", err.Error())
	assert.Nil(t, res.CSV)
	assert.Empty(t, rec.plans)
	assert.Contains(t, logs.String(), "upstream_error")
}

func TestRunRecorderFailureIsNotFatal(t *testing.T) {
	planner := &fakePlanner{out: adjust.Outcome{Adjusted: adjusted(t, "Rent", "1")}}
	failing := &fakeRecorder{err: errors.New("disk full")}
	ok := &fakeRecorder{}
	s, logs := newTestService(planner, WithRecorder(failing), WithRecorder(ok))

	_, err := s.Run(context.Background(), "x.csv", strings.NewReader("Rent\n1\n"), 0, "Rent")
	require.NoError(t, err)
	assert.Len(t, ok.plans, 1)
	assert.Contains(t, logs.String(), "Failed to record plan")
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{core.ErrInvalidInput, applog.ErrorTypeValidation},
		{&core.UpstreamError{Err: errors.New("x")}, applog.ErrorTypeUpstream},
		{core.ErrMalformedOutput, applog.ErrorTypeMalformed},
		{core.ErrParse, applog.ErrorTypeParse},
		{core.ErrGoalUnreachable, "goal_unreachable"},
		{errors.New("boom"), applog.ErrorTypeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err), "%v", tt.err)
	}
}

func TestClose(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewPlanService(&fakePlanner{}, WithRecorder(rec))
	require.NoError(t, s.Close())
	assert.True(t, rec.closed)
}
