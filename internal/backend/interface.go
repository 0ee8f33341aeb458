package backend

import (
	"context"
	"time"

	"risparmi/internal/adjust"
	"risparmi/internal/core"
)

// CleanupFunc releases resources held by a planner.
type CleanupFunc func() error

// PlannerResult contains the planner instance and optional cleanup function
type PlannerResult struct {
	Planner adjust.Planner
	// Describe names what was built, for startup logs and readiness output.
	Describe string
	Cleanup  CleanupFunc
}

// Factory creates planners based on configuration
type Factory interface {
	CreatePlanner(ctx context.Context, config Config) (*PlannerResult, error)
}

// Config holds configuration for planner creation
type Config struct {
	Strategy core.Strategy

	// Model strategy
	Provider       string
	Model          string
	Token          string
	BaseURL        string
	MaxTokens      int
	Temperature    float64
	Timeout        time.Duration
	PromptTemplate string

	// Completion decorators
	CacheTTL        time.Duration
	CacheSize       int
	BreakerFailures int
	BreakerTimeout  time.Duration
}
