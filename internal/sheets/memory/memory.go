// Package memory is an in-process PlanWriter used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"risparmi/internal/core"
	"risparmi/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.PlanWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendPlan stores the plan rows and returns a synthetic range reference.
func (s *Store) AppendPlan(_ context.Context, p core.Plan) (string, error) {
	rows := sheets.PlanRows(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
