/*
handlers.go - HTTP API handlers for the attendance pipeline

PURPOSE:

	Exposes event ingestion and punch classification via REST API. Handles
	HTTP request/response, JSON serialization, and delegates to the
	ingestion service, pipeline runner, and summary service.

ENDPOINTS:

	Events:
	  POST   /api/events                 Submit a raw clock event
	  POST   /api/events/process         Process unprocessed events
	  POST   /api/events/retry           Clear errors and requeue events
	  GET    /api/events/stats           Event table statistics

	Employees:
	  POST   /api/employees/{id}/events/process  Targeted ingestion
	  POST   /api/employees/{id}/process         Targeted classification
	  GET    /api/employees/{id}/punches         Punch history
	  GET    /api/employees/{id}/summary         Worked-hours summary

	Attendance:
	  POST   /api/attendance/process     Classify unresolved punches

ERROR HANDLING:

	Errors are returned as JSON with appropriate HTTP status:
	- 400: Validation errors, invalid input
	- 404: Resource not found
	- 409: Conflict (duplicate event)
	- 500: Internal errors

SECURITY NOTE:

	Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Automated processing runs
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/ingest"
	"github.com/meridian/attendance-engine/pipeline"
	"github.com/meridian/attendance-engine/summary"
)

// defaultBatchSize bounds an ingestion run when the caller leaves the
// batch size unset.
const defaultBatchSize = 500

// duplicateWindow is the suppression window for repeated badge scans on
// the same device.
const duplicateWindow = 30 * time.Second

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   attendance.IngestStore
	Ingest  *ingest.Service
	Runner  *pipeline.Runner
	Summary *summary.Service
}

// NewHandler creates a new handler.
func NewHandler(store attendance.IngestStore, ingestSvc *ingest.Service, runner *pipeline.Runner, summarySvc *summary.Service) *Handler {
	return &Handler{
		Store:   store,
		Ingest:  ingestSvc,
		Runner:  runner,
		Summary: summarySvc,
	}
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// CreateEvent accepts a raw device event.
// POST /api/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	eventTime, err := time.Parse(time.RFC3339, req.EventTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_time format (use RFC3339)", err)
		return
	}

	// Shift date defaults to the calendar date of the event.
	shiftDate := eventTime.Truncate(24 * time.Hour)
	if req.ShiftDate != "" {
		shiftDate, err = time.Parse("2006-01-02", req.ShiftDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid shift_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	employeeID := attendance.EmployeeID(req.EmployeeID)
	if employeeID != "" && req.DeviceID != "" {
		dup, err := h.Store.HasDuplicateWithin(r.Context(), employeeID, req.DeviceID, eventTime, duplicateWindow)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check for duplicates", err)
			return
		}
		if dup {
			writeError(w, http.StatusConflict, "Duplicate event within suppression window", attendance.ErrDuplicateEvent)
			return
		}
	}

	event := &attendance.ClockEvent{
		EmployeeID: employeeID,
		DeviceID:   req.DeviceID,
		EventTime:  eventTime,
		ShiftDate:  shiftDate,
	}
	if err := h.Store.CreateEvent(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create event", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// ProcessEvents runs one ingestion batch.
// POST /api/events/process
func (h *Handler) ProcessEvents(w http.ResponseWriter, r *http.Request) {
	var req ProcessEventsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.BatchSize <= 0 {
		req.BatchSize = defaultBatchSize
	}

	stats, err := h.Ingest.ProcessUnprocessedEvents(r.Context(), req.BatchSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process events", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RetryEvents clears processing errors so errored events requeue.
// POST /api/events/retry
func (h *Handler) RetryEvents(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Ingest.RetryFailedEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retry events", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// EventStats returns event table statistics.
// GET /api/events/stats
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Ingest.ProcessingStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load event stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ProcessEmployeeEvents ingests one employee's events in a date range.
// POST /api/employees/{id}/events/process
func (h *Handler) ProcessEmployeeEvents(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "id"))

	from, to, ok := h.parseRangeBody(w, r)
	if !ok {
		return
	}

	stats, err := h.Ingest.ProcessEmployeeEvents(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process employee events", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ProcessEmployee classifies one employee's unresolved punches.
// POST /api/employees/{id}/process
func (h *Handler) ProcessEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "id"))

	from, to, ok := h.parseRangeBody(w, r)
	if !ok {
		return
	}

	stats, err := h.Runner.ProcessEmployee(r.Context(), employeeID, from, to.Add(24*time.Hour-time.Second))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process employee", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetPunches returns an employee's punch history.
// GET /api/employees/{id}/punches?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetPunches(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "id"))

	from, to, ok := h.parseRangeQuery(w, r)
	if !ok {
		return
	}

	punches, err := h.Store.PunchesForEmployee(r.Context(), employeeID, from, to.Add(24*time.Hour-time.Second))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load punches", err)
		return
	}

	dtos := make([]PunchDTO, len(punches))
	for i, p := range punches {
		dtos[i] = toPunchDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSummary returns worked-hours totals for an employee.
// GET /api/employees/{id}/summary?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	employeeID := attendance.EmployeeID(chi.URLParam(r, "id"))

	from, to, ok := h.parseRangeQuery(w, r)
	if !ok {
		return
	}

	result, err := h.Summary.ForEmployee(r.Context(), employeeID, from, to.Add(24*time.Hour-time.Second))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ProcessAttendance classifies all unresolved punches in a date range.
// POST /api/attendance/process
func (h *Handler) ProcessAttendance(w http.ResponseWriter, r *http.Request) {
	var req ProcessAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	stats, err := h.Runner.ProcessRange(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetPunch returns a single punch.
// GET /api/punches/{id}
func (h *Handler) GetPunch(w http.ResponseWriter, r *http.Request) {
	punch, err := h.Store.GetPunch(r.Context(), attendance.PunchID(chi.URLParam(r, "id")))
	if err != nil {
		if errors.Is(err, attendance.ErrPunchNotFound) {
			writeError(w, http.StatusNotFound, "Punch not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load punch", err)
		return
	}
	writeJSON(w, http.StatusOK, toPunchDTO(punch))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parseRangeBody(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var req DateRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return time.Time{}, time.Time{}, false
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) parseRangeQuery(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use from= and to= as YYYY-MM-DD)", err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to precedes from")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
