/*
Package memory provides an in-memory implementation of the storage interfaces.

PURPOSE:

	A complete attendance.IngestStore plus schedule lookup backed by maps,
	for tests and local development. Semantics mirror store/sqlite,
	including the snapshot-rollback behavior of WithTx.

CONCURRENCY:

	A single sync.RWMutex guards all maps. WithTx holds the write lock for
	the whole transaction and hands fn an unlocked view, so transactional
	callbacks must not call back into the outer store.

SEE ALSO:
  - attendance/store.go: interface definitions
  - store/sqlite: production implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meridian/attendance-engine/attendance"
)

// Store implements attendance.IngestStore and attendance.ScheduleProvider
// in memory.
type Store struct {
	mu sync.RWMutex

	punches map[attendance.PunchID]*attendance.Punch
	events  map[attendance.EventID]*attendance.ClockEvent

	// schedules maps employee id to schedule; departments maps employee
	// id to department id, departmentSchedules department id to
	// schedule. Resolution is employee first, then department.
	schedules           map[attendance.EmployeeID]*attendance.ShiftSchedule
	departments         map[attendance.EmployeeID]string
	departmentSchedules map[string]*attendance.ShiftSchedule

	punchSeq int
	eventSeq int
}

func New() *Store {
	return &Store{
		punches:             make(map[attendance.PunchID]*attendance.Punch),
		events:              make(map[attendance.EventID]*attendance.ClockEvent),
		schedules:           make(map[attendance.EmployeeID]*attendance.ShiftSchedule),
		departments:         make(map[attendance.EmployeeID]string),
		departmentSchedules: make(map[string]*attendance.ShiftSchedule),
	}
}

// =============================================================================
// PUNCH STORE
// =============================================================================

func (s *Store) CreatePunches(ctx context.Context, punches []*attendance.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPunchesLocked(punches)
}

func (s *Store) createPunchesLocked(punches []*attendance.Punch) error {
	for _, p := range punches {
		if p.ID == "" {
			s.punchSeq++
			p.ID = attendance.PunchID(fmt.Sprintf("punch-%d", s.punchSeq))
		}
		cp := *p
		s.punches[p.ID] = &cp
	}
	return nil
}

func (s *Store) UpdatePunch(ctx context.Context, punch *attendance.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePunchLocked(punch)
}

func (s *Store) updatePunchLocked(punch *attendance.Punch) error {
	if _, ok := s.punches[punch.ID]; !ok {
		return attendance.ErrPunchNotFound
	}
	cp := *punch
	s.punches[punch.ID] = &cp
	return nil
}

func (s *Store) GetPunch(ctx context.Context, id attendance.PunchID) (*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.punches[id]
	if !ok {
		return nil, attendance.ErrPunchNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) PunchesForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*attendance.Punch
	for _, p := range s.punches {
		if p.EmployeeID != employeeID {
			continue
		}
		if p.PunchTime.Before(from) || p.PunchTime.After(to) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	attendance.SortPunches(result)
	return result, nil
}

func (s *Store) UnresolvedPunches(ctx context.Context, from, to time.Time) ([]*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unresolvedPunchesLocked(from, to)
}

func (s *Store) unresolvedPunchesLocked(from, to time.Time) ([]*attendance.Punch, error) {
	var result []*attendance.Punch
	for _, p := range s.punches {
		if p.Status != attendance.StatusIncomplete && p.Status != attendance.StatusNeedsReview {
			continue
		}
		if p.ShiftDate.Before(from) || p.ShiftDate.After(to) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EmployeeID != result[j].EmployeeID {
			return result[i].EmployeeID < result[j].EmployeeID
		}
		return result[i].PunchTime.Before(result[j].PunchTime)
	})
	return result, nil
}

func (s *Store) TrainingPunches(ctx context.Context, limit int) ([]*attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trainingPunchesLocked(limit)
}

func (s *Store) trainingPunchesLocked(limit int) ([]*attendance.Punch, error) {
	var result []*attendance.Punch
	for _, p := range s.punches {
		if p.Status != attendance.StatusComplete || !p.Classified() {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PunchTime.After(result[j].PunchTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) CreateEvent(ctx context.Context, event *attendance.ClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		s.eventSeq++
		event.ID = attendance.EventID(fmt.Sprintf("event-%d", s.eventSeq))
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s *Store) ReadyEvents(ctx context.Context, limit int) ([]*attendance.ClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readyEventsLocked(limit)
}

func (s *Store) readyEventsLocked(limit int) ([]*attendance.ClockEvent, error) {
	var result []*attendance.ClockEvent
	for _, e := range s.events {
		if e.Processed || e.ProcessingError != "" {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EventTime.Before(result[j].EventTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) EventsForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.ClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsForEmployeeLocked(employeeID, from, to)
}

func (s *Store) eventsForEmployeeLocked(employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.ClockEvent, error) {
	var result []*attendance.ClockEvent
	for _, e := range s.events {
		if e.EmployeeID != employeeID {
			continue
		}
		if e.ShiftDate.Before(from) || e.ShiftDate.After(to) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EventTime.Before(result[j].EventTime)
	})
	return result, nil
}

func (s *Store) MarkProcessed(ctx context.Context, eventID attendance.EventID, attendanceID attendance.PunchID, batchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markProcessedLocked(eventID, attendanceID, batchID, at)
}

func (s *Store) markProcessedLocked(eventID attendance.EventID, attendanceID attendance.PunchID, batchID string, at time.Time) error {
	e, ok := s.events[eventID]
	if !ok {
		return attendance.ErrEventNotFound
	}
	e.Processed = true
	e.ProcessedAt = &at
	e.AttendanceID = attendanceID
	e.BatchID = batchID
	e.ProcessingError = ""
	return nil
}

func (s *Store) MarkError(ctx context.Context, eventID attendance.EventID, message, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return attendance.ErrEventNotFound
	}
	e.ProcessingError = message
	e.BatchID = batchID
	return nil
}

func (s *Store) ClearErrors(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for _, e := range s.events {
		if e.ProcessingError != "" {
			e.ProcessingError = ""
			e.BatchID = ""
			cleared++
		}
	}
	return cleared, nil
}

func (s *Store) HasDuplicateWithin(ctx context.Context, employeeID attendance.EmployeeID, deviceID string, at time.Time, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.EmployeeID != employeeID || e.DeviceID != deviceID {
			continue
		}
		gap := at.Sub(e.EventTime)
		if gap < 0 {
			gap = -gap
		}
		if gap <= window {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Stats(ctx context.Context) (attendance.EventStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st attendance.EventStats
	for _, e := range s.events {
		st.Total++
		if e.Processed {
			st.Processed++
		} else {
			st.Unprocessed++
		}
		if e.ProcessingError != "" {
			st.WithErrors++
		}
		if e.ReadyForProcessing() {
			st.Ready++
		}
	}
	return st, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot rollback
// =============================================================================

// WithTx executes fn against a transactional view. On error the punch
// and event maps are restored from a snapshot taken before fn ran.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.IngestStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	punchSnap := make(map[attendance.PunchID]*attendance.Punch, len(s.punches))
	for id, p := range s.punches {
		cp := *p
		punchSnap[id] = &cp
	}
	eventSnap := make(map[attendance.EventID]*attendance.ClockEvent, len(s.events))
	for id, e := range s.events {
		cp := *e
		eventSnap[id] = &cp
	}
	punchSeq, eventSeq := s.punchSeq, s.eventSeq

	if err := fn(&txStore{parent: s}); err != nil {
		s.punches = punchSnap
		s.events = eventSnap
		s.punchSeq, s.eventSeq = punchSeq, eventSeq
		return err
	}
	return nil
}

// txStore is the view handed to WithTx callbacks. The parent's lock is
// already held, so writes go through the locked helpers directly.
type txStore struct {
	parent *Store
}

func (t *txStore) CreatePunches(ctx context.Context, punches []*attendance.Punch) error {
	return t.parent.createPunchesLocked(punches)
}

func (t *txStore) UpdatePunch(ctx context.Context, punch *attendance.Punch) error {
	return t.parent.updatePunchLocked(punch)
}

func (t *txStore) MarkProcessed(ctx context.Context, eventID attendance.EventID, attendanceID attendance.PunchID, batchID string, at time.Time) error {
	return t.parent.markProcessedLocked(eventID, attendanceID, batchID, at)
}

func (t *txStore) MarkError(ctx context.Context, eventID attendance.EventID, message, batchID string) error {
	e, ok := t.parent.events[eventID]
	if !ok {
		return attendance.ErrEventNotFound
	}
	e.ProcessingError = message
	e.BatchID = batchID
	return nil
}

func (t *txStore) CreateEvent(ctx context.Context, event *attendance.ClockEvent) error {
	if event.ID == "" {
		t.parent.eventSeq++
		event.ID = attendance.EventID(fmt.Sprintf("event-%d", t.parent.eventSeq))
	}
	cp := *event
	t.parent.events[event.ID] = &cp
	return nil
}

// Read operations inside a transaction see the in-progress writes.

func (t *txStore) GetPunch(ctx context.Context, id attendance.PunchID) (*attendance.Punch, error) {
	p, ok := t.parent.punches[id]
	if !ok {
		return nil, attendance.ErrPunchNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *txStore) PunchesForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.Punch, error) {
	var result []*attendance.Punch
	for _, p := range t.parent.punches {
		if p.EmployeeID == employeeID && !p.PunchTime.Before(from) && !p.PunchTime.After(to) {
			cp := *p
			result = append(result, &cp)
		}
	}
	attendance.SortPunches(result)
	return result, nil
}

func (t *txStore) UnresolvedPunches(ctx context.Context, from, to time.Time) ([]*attendance.Punch, error) {
	return t.parent.unresolvedPunchesLocked(from, to)
}

func (t *txStore) TrainingPunches(ctx context.Context, limit int) ([]*attendance.Punch, error) {
	return t.parent.trainingPunchesLocked(limit)
}

func (t *txStore) ReadyEvents(ctx context.Context, limit int) ([]*attendance.ClockEvent, error) {
	return t.parent.readyEventsLocked(limit)
}

func (t *txStore) EventsForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) ([]*attendance.ClockEvent, error) {
	return t.parent.eventsForEmployeeLocked(employeeID, from, to)
}

func (t *txStore) ClearErrors(ctx context.Context) (int, error) {
	cleared := 0
	for _, e := range t.parent.events {
		if e.ProcessingError != "" {
			e.ProcessingError = ""
			e.BatchID = ""
			cleared++
		}
	}
	return cleared, nil
}

func (t *txStore) HasDuplicateWithin(ctx context.Context, employeeID attendance.EmployeeID, deviceID string, at time.Time, window time.Duration) (bool, error) {
	for _, e := range t.parent.events {
		if e.EmployeeID != employeeID || e.DeviceID != deviceID {
			continue
		}
		gap := at.Sub(e.EventTime)
		if gap < 0 {
			gap = -gap
		}
		if gap <= window {
			return true, nil
		}
	}
	return false, nil
}

func (t *txStore) Stats(ctx context.Context) (attendance.EventStats, error) {
	var st attendance.EventStats
	for _, e := range t.parent.events {
		st.Total++
		if e.Processed {
			st.Processed++
		} else {
			st.Unprocessed++
		}
		if e.ProcessingError != "" {
			st.WithErrors++
		}
		if e.ReadyForProcessing() {
			st.Ready++
		}
	}
	return st, nil
}

func (t *txStore) WithTx(ctx context.Context, fn func(attendance.IngestStore) error) error {
	// Nested transactions join the outer one.
	return fn(t)
}

// =============================================================================
// SCHEDULE PROVIDER - Employee then department resolution
// =============================================================================

// SetSchedule registers an employee-specific schedule.
func (s *Store) SetSchedule(employeeID attendance.EmployeeID, schedule *attendance.ShiftSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[employeeID] = schedule
}

// SetDepartment assigns an employee to a department.
func (s *Store) SetDepartment(employeeID attendance.EmployeeID, departmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[employeeID] = departmentID
}

// SetDepartmentSchedule registers a department-level fallback schedule.
func (s *Store) SetDepartmentSchedule(departmentID string, schedule *attendance.ShiftSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departmentSchedules[departmentID] = schedule
}

// ScheduleFor resolves employee-specific first, then the employee's
// department schedule. Returns (nil, nil) when neither exists. Callers
// get a copy, like every other accessor on this store.
func (s *Store) ScheduleFor(ctx context.Context, employeeID attendance.EmployeeID) (*attendance.ShiftSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sched, ok := s.schedules[employeeID]; ok {
		cp := *sched
		return &cp, nil
	}
	if dept, ok := s.departments[employeeID]; ok {
		if sched, ok := s.departmentSchedules[dept]; ok {
			cp := *sched
			return &cp, nil
		}
	}
	return nil, nil
}
