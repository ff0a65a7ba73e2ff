// Package gather defines the contract shared by data gathering jobs.
package gather

import (
	"context"
	"time"

	"stockperf/internal/domain"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass and returns when it is complete.
	Run(ctx context.Context) error
}

// DateRange is a half-open calendar-date window [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the window contains no dates.
func (r DateRange) Empty() bool {
	return !r.Start.Before(r.End)
}

// Days returns the number of calendar days in the window.
func (r DateRange) Days() int {
	if r.Empty() {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// String renders the window as [start, end).
func (r DateRange) String() string {
	return "[" + domain.FormatDate(r.Start) + ", " + domain.FormatDate(r.End) + ")"
}
