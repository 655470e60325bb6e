package attendance

import (
	"context"
	"sync"
)

// =============================================================================
// SHIFT SCHEDULE - External read-only contract
// =============================================================================

// ShiftSchedule describes the expected shape of an employee's day. It is
// owned by the surrounding scheduling system; the pipeline only reads it.
type ShiftSchedule struct {
	ID             string
	StartTime      ClockTime
	EndTime        ClockTime
	LunchStartTime ClockTime
	LunchStopTime  ClockTime

	// LunchDurationMinutes is the expected lunch length used by the
	// lunch-pair duration scoring. Zero means unspecified; callers
	// should treat it as the default 30.
	LunchDurationMinutes int

	DailyHours float64
}

// ExpectedLunchMinutes returns the configured lunch duration, defaulting
// to 30 minutes when the schedule leaves it unset.
func (s *ShiftSchedule) ExpectedLunchMinutes() int {
	if s.LunchDurationMinutes <= 0 {
		return 30
	}
	return s.LunchDurationMinutes
}

// =============================================================================
// SCHEDULE PROVIDER - Resolution with employee -> department fallback
// =============================================================================

// ScheduleProvider resolves the applicable schedule for an employee.
// Resolution order is employee-specific first, then the employee's
// department schedule, then nil. A nil schedule with a nil error means
// the employee genuinely has no schedule; classification must mark the
// day NeedsReview rather than guess a default.
type ScheduleProvider interface {
	ScheduleFor(ctx context.Context, employeeID EmployeeID) (*ShiftSchedule, error)
}

// CachingScheduleProvider wraps a ScheduleProvider and memoizes lookups
// for the duration of a processing run. Schedule resolution is the only
// I/O the engines trigger, and it must be issued once per employee-day,
// not once per punch.
type CachingScheduleProvider struct {
	inner ScheduleProvider

	mu    sync.Mutex
	cache map[EmployeeID]*ShiftSchedule
	known map[EmployeeID]bool
}

func NewCachingScheduleProvider(inner ScheduleProvider) *CachingScheduleProvider {
	return &CachingScheduleProvider{
		inner: inner,
		cache: make(map[EmployeeID]*ShiftSchedule),
		known: make(map[EmployeeID]bool),
	}
}

func (p *CachingScheduleProvider) ScheduleFor(ctx context.Context, employeeID EmployeeID) (*ShiftSchedule, error) {
	p.mu.Lock()
	if p.known[employeeID] {
		sched := p.cache[employeeID]
		p.mu.Unlock()
		return sched, nil
	}
	p.mu.Unlock()

	sched, err := p.inner.ScheduleFor(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[employeeID] = sched
	p.known[employeeID] = true
	p.mu.Unlock()

	return sched, nil
}
