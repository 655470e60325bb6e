/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:

	JSON shapes exchanged with clients, kept separate from domain types so
	the wire format can evolve without touching the pipeline.

CONVENTIONS:
  - Dates are "YYYY-MM-DD"; timestamps are RFC3339
  - Error responses always use ErrorResponse

SEE ALSO:
  - handlers.go: Handlers producing/consuming these DTOs
*/
package api

import (
	"time"

	"github.com/meridian/attendance-engine/attendance"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateEventRequest is a raw device event submission.
type CreateEventRequest struct {
	EmployeeID string `json:"employee_id"`
	DeviceID   string `json:"device_id"`
	EventTime  string `json:"event_time"` // RFC3339
	ShiftDate  string `json:"shift_date,omitempty"`
}

// ProcessEventsRequest controls an ingestion run.
type ProcessEventsRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

// ProcessAttendanceRequest controls a classification run.
type ProcessAttendanceRequest struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`   // YYYY-MM-DD
}

// DateRangeRequest scopes employee-targeted operations.
type DateRangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// EventDTO is the wire form of a clock event.
type EventDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	DeviceID        string `json:"device_id,omitempty"`
	EventTime       string `json:"event_time"`
	ShiftDate       string `json:"shift_date"`
	Processed       bool   `json:"is_processed"`
	ProcessedAt     string `json:"processed_at,omitempty"`
	AttendanceID    string `json:"attendance_id,omitempty"`
	BatchID         string `json:"batch_id,omitempty"`
	ProcessingError string `json:"processing_error,omitempty"`
}

// PunchDTO is the wire form of a punch.
type PunchDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	DeviceID   string `json:"device_id,omitempty"`
	PunchTime  string `json:"punch_time"`
	ShiftDate  string `json:"shift_date"`
	Type       string `json:"punch_type"`
	TypeName   string `json:"punch_type_name"`
	State      string `json:"punch_state"`
	Status     string `json:"status"`
	IssueNotes string `json:"issue_notes,omitempty"`
	IsManual   bool   `json:"is_manual"`
	Source     string `json:"source"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toEventDTO(e *attendance.ClockEvent) EventDTO {
	dto := EventDTO{
		ID:              string(e.ID),
		EmployeeID:      string(e.EmployeeID),
		DeviceID:        e.DeviceID,
		EventTime:       e.EventTime.Format(time.RFC3339),
		ShiftDate:       e.ShiftDate.Format("2006-01-02"),
		Processed:       e.Processed,
		AttendanceID:    string(e.AttendanceID),
		BatchID:         e.BatchID,
		ProcessingError: e.ProcessingError,
	}
	if e.ProcessedAt != nil {
		dto.ProcessedAt = e.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

func toPunchDTO(p *attendance.Punch) PunchDTO {
	return PunchDTO{
		ID:         string(p.ID),
		EmployeeID: string(p.EmployeeID),
		DeviceID:   p.DeviceID,
		PunchTime:  p.PunchTime.Format(time.RFC3339),
		ShiftDate:  p.ShiftDate.Format("2006-01-02"),
		Type:       string(p.Type),
		TypeName:   p.Type.DisplayName(),
		State:      string(p.State),
		Status:     string(p.Status),
		IssueNotes: p.IssueNotes,
		IsManual:   p.IsManual,
		Source:     p.Source,
	}
}
