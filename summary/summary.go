/*
Package summary computes worked-time totals from classified punches.

PURPOSE:

	Once a shift-day's punches carry final types, the day decomposes into
	intervals: clock-in to clock-out bounds the shift, lunch and break
	pairs subtract from it. This package pairs those intervals and reports
	worked, lunch, and break hours per day plus range totals.

PRECISION:

	Hours are decimal.Decimal, never float64. Payroll consumers round at
	presentation time; accumulating float error across a pay period is
	not acceptable.

INCOMPLETE DAYS:

	A day with unresolved punches or an unmatched pair reports zero hours
	and Complete=false rather than a guessed total.
*/
package summary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian/attendance-engine/attendance"
)

var minutesPerHour = decimal.NewFromInt(60)

// DaySummary is the computed totals for one employee shift-day.
type DaySummary struct {
	ShiftDate    string          `json:"shift_date"`
	PunchCount   int             `json:"punch_count"`
	Complete     bool            `json:"complete"`
	WorkedHours  decimal.Decimal `json:"worked_hours"`
	LunchHours   decimal.Decimal `json:"lunch_hours"`
	BreakHours   decimal.Decimal `json:"break_hours"`
	ReviewNeeded bool            `json:"review_needed"`
}

// RangeSummary aggregates an employee's days over a date range.
type RangeSummary struct {
	EmployeeID  attendance.EmployeeID `json:"employee_id"`
	From        string                `json:"from"`
	To          string                `json:"to"`
	Days        []DaySummary          `json:"days"`
	TotalWorked decimal.Decimal       `json:"total_worked_hours"`
	TotalLunch  decimal.Decimal       `json:"total_lunch_hours"`
	TotalBreaks decimal.Decimal       `json:"total_break_hours"`
}

// Service computes summaries from stored punches.
type Service struct {
	Punches attendance.PunchStore
}

func New(punches attendance.PunchStore) *Service {
	return &Service{Punches: punches}
}

// ForEmployee summarizes an employee's shift-days with punch times in
// [from, to].
func (s *Service) ForEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) (RangeSummary, error) {
	result := RangeSummary{
		EmployeeID:  employeeID,
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		TotalWorked: decimal.Zero,
		TotalLunch:  decimal.Zero,
		TotalBreaks: decimal.Zero,
	}

	punches, err := s.Punches.PunchesForEmployee(ctx, employeeID, from, to)
	if err != nil {
		return result, err
	}

	for _, group := range groupByDay(punches) {
		day := SummarizeDay(group)
		result.Days = append(result.Days, day)
		result.TotalWorked = result.TotalWorked.Add(day.WorkedHours)
		result.TotalLunch = result.TotalLunch.Add(day.LunchHours)
		result.TotalBreaks = result.TotalBreaks.Add(day.BreakHours)
	}
	return result, nil
}

// SummarizeDay computes one shift-day's totals from its punches. The
// day counts as complete only when every punch is Complete and the
// clock, lunch, and break pairs all close.
func SummarizeDay(punches []*attendance.Punch) DaySummary {
	day := DaySummary{
		PunchCount:  len(punches),
		WorkedHours: decimal.Zero,
		LunchHours:  decimal.Zero,
		BreakHours:  decimal.Zero,
	}
	if len(punches) == 0 {
		return day
	}

	sorted := make([]*attendance.Punch, len(punches))
	copy(sorted, punches)
	attendance.SortPunches(sorted)
	day.ShiftDate = sorted[0].ShiftDate.Format("2006-01-02")

	for _, p := range sorted {
		switch p.Status {
		case attendance.StatusNeedsReview, attendance.StatusDiscrepancy:
			day.ReviewNeeded = true
			return day
		case attendance.StatusIncomplete:
			return day
		}
	}

	var clockIn, lunchStart, breakStart *attendance.Punch
	shiftMinutes := 0
	lunchMinutes := 0
	breakMinutes := 0
	balanced := true

	for _, p := range sorted {
		switch p.Type {
		case attendance.ClockIn:
			clockIn = p
		case attendance.ClockOut:
			if clockIn == nil {
				balanced = false
				break
			}
			shiftMinutes += attendance.MinutesBetween(clockIn.PunchTime, p.PunchTime)
			clockIn = nil
		case attendance.LunchStart:
			lunchStart = p
		case attendance.LunchStop:
			if lunchStart == nil {
				balanced = false
				break
			}
			lunchMinutes += attendance.MinutesBetween(lunchStart.PunchTime, p.PunchTime)
			lunchStart = nil
		case attendance.BreakStart:
			breakStart = p
		case attendance.BreakEnd:
			if breakStart == nil {
				balanced = false
				break
			}
			breakMinutes += attendance.MinutesBetween(breakStart.PunchTime, p.PunchTime)
			breakStart = nil
		}
	}

	if !balanced || clockIn != nil || lunchStart != nil || breakStart != nil {
		day.ReviewNeeded = true
		return day
	}

	day.Complete = true
	day.LunchHours = hours(lunchMinutes)
	day.BreakHours = hours(breakMinutes)
	day.WorkedHours = hours(shiftMinutes - lunchMinutes - breakMinutes)
	return day
}

func hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Round(2)
}

func groupByDay(punches []*attendance.Punch) [][]*attendance.Punch {
	var groups [][]*attendance.Punch
	index := make(map[string]int)

	for _, p := range punches {
		key := p.ShiftDate.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], p)
	}
	return groups
}
