// Package tally computes vote counts and percentages for a poll.
package tally

import (
	"context"
	"fmt"

	"github.com/dailypoll/backend/internal/models"
)

// Counter reads raw A/B counts for a poll.
type Counter interface {
	CountVotes(ctx context.Context, pollID int64) (a, b int, err error)
}

// Engine recomputes a poll's tally from the stored votes on every call.
type Engine struct {
	counter Counter
}

// NewEngine creates a tally engine over counter.
func NewEngine(counter Counter) *Engine {
	return &Engine{counter: counter}
}

// Compute returns the current tally for pollID.
func (e *Engine) Compute(ctx context.Context, pollID int64) (models.Tally, error) {
	a, b, err := e.counter.CountVotes(ctx, pollID)
	if err != nil {
		return models.Tally{}, fmt.Errorf("count votes for poll %d: %w", pollID, err)
	}
	return models.NewTally(a, b), nil
}

// Percent formats a 0..1 ratio with one decimal, e.g. 0.5 -> "50.0%".
func Percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
