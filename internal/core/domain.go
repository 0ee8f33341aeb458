package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StrategyModel Strategy = "model"
	StrategyLocal Strategy = "local"
)

type (
	Strategy string

	// AdjustmentRequest is the immutable input of one savings plan.
	AdjustmentRequest struct {
		Expenses    ExpenseMap
		SavingsGoal int    // percentage of the monthly total to save
		Excluded    string // category kept unchanged
	}

	// Plan is one completed round trip, as recorded in history and events.
	Plan struct {
		ID          string
		CreatedAt   time.Time
		Strategy    Strategy
		Model       string
		SavingsGoal int
		Excluded    string
		Original    ExpenseMap
		Adjusted    ExpenseMap
		Reply       string // raw model text, empty for the local strategy
	}
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyExpenses     = errors.New("no expense categories")
	ErrInvalidGoal       = errors.New("savings goal must be between 0 and 100")
	ErrEmptyExcluded     = errors.New("empty excluded category")
	ErrParse             = errors.New("cannot read tabular data")
	ErrNonNumeric        = errors.New("non-numeric value")
	ErrMalformedOutput   = errors.New("malformed model output")
	ErrGoalUnreachable   = errors.New("savings goal cannot be reached")
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrEmptyCategory     = errors.New("empty category name")
	ErrPlanNotFound      = errors.New("plan not found")
)

// UpstreamError wraps a failure of the completion service. Its message is
// surfaced to callers as-is.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Provider == "" {
		return e.Err.Error()
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyModel, StrategyLocal:
		return true
	default:
		return false
	}
}

func (s Strategy) String() string {
	return string(s)
}

// NewAdjustmentRequest builds a request and validates it.
func NewAdjustmentRequest(expenses ExpenseMap, savingsGoal int, excluded string) (AdjustmentRequest, error) {
	req := AdjustmentRequest{
		Expenses:    expenses.Clone(),
		SavingsGoal: savingsGoal,
		Excluded:    strings.TrimSpace(excluded),
	}
	if err := req.Validate(); err != nil {
		return AdjustmentRequest{}, err
	}
	return req, nil
}

func (r AdjustmentRequest) Validate() error {
	if r.Expenses.Len() == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyExpenses)
	}
	if r.SavingsGoal < 0 || r.SavingsGoal > 100 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrInvalidGoal)
	}
	if strings.TrimSpace(r.Excluded) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyExcluded)
	}
	return nil
}

// SavingsTarget returns goal% of the monthly total.
func (r AdjustmentRequest) SavingsTarget() decimal.Decimal {
	return r.Expenses.Total().Mul(decimal.NewFromInt(int64(r.SavingsGoal))).Div(decimal.NewFromInt(100))
}

// Saved returns how much the adjusted plan saves with respect to the original.
func (p Plan) Saved() decimal.Decimal {
	return p.Original.Total().Sub(p.Adjusted.Total())
}
