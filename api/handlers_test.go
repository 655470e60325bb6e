package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/attendance-engine/api"
	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/ingest"
	"github.com/meridian/attendance-engine/pipeline"
	"github.com/meridian/attendance-engine/store/memory"
	"github.com/meridian/attendance-engine/summary"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

// newTestServer wires the full stack over the in-memory store, with the
// predictor disabled so classification outcomes are deterministic.
func newTestServer(t *testing.T) (*memory.Store, *httptest.Server) {
	t.Helper()

	store := memory.New()
	cfg := attendance.DefaultConfig()
	cfg.PredictorEnabled = false

	handler := api.NewHandler(
		store,
		ingest.New(store),
		pipeline.NewRunner(store, store, nil, cfg),
		summary.New(store),
	)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return store, server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func standardSchedule() *attendance.ShiftSchedule {
	return &attendance.ShiftSchedule{
		StartTime:            attendance.NewClockTime(8, 0),
		EndTime:              attendance.NewClockTime(17, 0),
		LunchStartTime:       attendance.NewClockTime(12, 0),
		LunchStopTime:        attendance.NewClockTime(12, 30),
		LunchDurationMinutes: 30,
	}
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

func TestCreateEvent_Success(t *testing.T) {
	_, server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/events", api.CreateEventRequest{
		EmployeeID: "emp-1",
		DeviceID:   "device-1",
		EventTime:  testDay.Add(8 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	event := decodeBody[api.EventDTO](t, resp)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "emp-1", event.EmployeeID)
	assert.Equal(t, "2025-03-10", event.ShiftDate)
	assert.False(t, event.Processed)
}

func TestCreateEvent_InvalidTime(t *testing.T) {
	_, server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/events", api.CreateEventRequest{
		EmployeeID: "emp-1",
		EventTime:  "10/03/2025 08:00",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[api.ErrorResponse](t, resp)
	assert.Contains(t, body.Error, "RFC3339")
}

func TestCreateEvent_DuplicateSuppressed(t *testing.T) {
	// GIVEN: A stored badge scan
	_, server := newTestServer(t)
	req := api.CreateEventRequest{
		EmployeeID: "emp-1",
		DeviceID:   "device-1",
		EventTime:  testDay.Add(8 * time.Hour).Format(time.RFC3339),
	}
	resp := postJSON(t, server.URL+"/api/events", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// WHEN: The same badge hits the same device seconds later
	req.EventTime = testDay.Add(8*time.Hour + 10*time.Second).Format(time.RFC3339)
	resp = postJSON(t, server.URL+"/api/events", req)

	// THEN: The scan is rejected as a duplicate
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[api.ErrorResponse](t, resp)
	assert.Contains(t, body.Error, "Duplicate")
}

func TestProcessEvents_EmptyBodyUsesDefaults(t *testing.T) {
	store, server := newTestServer(t)
	require.NoError(t, store.CreateEvent(context.Background(), &attendance.ClockEvent{
		ID: "ev-1", EmployeeID: "emp-1",
		EventTime: testDay.Add(8 * time.Hour), ShiftDate: testDay,
	}))

	resp, err := http.Post(server.URL+"/api/events/process", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decodeBody[ingest.Stats](t, resp)
	assert.Equal(t, 1, stats.Processed)
	assert.NotEmpty(t, stats.BatchID)
}

func TestEventStats(t *testing.T) {
	store, server := newTestServer(t)
	require.NoError(t, store.CreateEvent(context.Background(), &attendance.ClockEvent{
		ID: "ev-1", EmployeeID: "emp-1",
		EventTime: testDay.Add(8 * time.Hour), ShiftDate: testDay,
	}))

	resp, err := http.Get(server.URL + "/api/events/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decodeBody[attendance.EventStats](t, resp)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Ready)
}

func TestRetryEvents(t *testing.T) {
	store, server := newTestServer(t)
	require.NoError(t, store.CreateEvent(context.Background(), &attendance.ClockEvent{
		ID: "ev-1", EmployeeID: "emp-1",
		EventTime: testDay.Add(8 * time.Hour), ShiftDate: testDay,
		ProcessingError: "device offline",
	}))

	resp, err := http.Post(server.URL+"/api/events/retry", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decodeBody[ingest.RetryStats](t, resp)
	assert.Equal(t, 1, stats.ClearedErrors)
	assert.Equal(t, 1, stats.ReadyForRetry)
}

// =============================================================================
// CLASSIFICATION FLOW
// =============================================================================

func TestFullFlow_EventsToClassifiedPunches(t *testing.T) {
	// GIVEN: A schedule and four raw events for one shift-day
	store, server := newTestServer(t)
	store.SetSchedule("emp-1", standardSchedule())

	for i, hm := range [][2]int{{8, 0}, {12, 0}, {12, 30}, {17, 0}} {
		resp := postJSON(t, server.URL+"/api/events", api.CreateEventRequest{
			EmployeeID: "emp-1",
			DeviceID:   fmt.Sprintf("device-%d", i%2),
			EventTime:  testDay.Add(time.Duration(hm[0])*time.Hour + time.Duration(hm[1])*time.Minute).Format(time.RFC3339),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	// WHEN: Ingestion then classification run over the day
	resp := postJSON(t, server.URL+"/api/events/process", api.ProcessEventsRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingestStats := decodeBody[ingest.Stats](t, resp)
	require.Equal(t, 4, ingestStats.Processed)

	resp = postJSON(t, server.URL+"/api/attendance/process", api.ProcessAttendanceRequest{
		From: "2025-03-10", To: "2025-03-10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runStats := decodeBody[pipeline.Stats](t, resp)
	assert.Equal(t, 4, runStats.Classified)

	// THEN: The punch history shows the final lunch-day classification
	resp, err := http.Get(server.URL + "/api/employees/emp-1/punches?from=2025-03-10&to=2025-03-10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	punches := decodeBody[[]api.PunchDTO](t, resp)
	require.Len(t, punches, 4)
	assert.Equal(t, "clock_in", punches[0].Type)
	assert.Equal(t, "Clock In", punches[0].TypeName)
	assert.Equal(t, "lunch_start", punches[1].Type)
	assert.Equal(t, "lunch_stop", punches[2].Type)
	assert.Equal(t, "clock_out", punches[3].Type)
	for _, p := range punches {
		assert.Equal(t, "Complete", p.Status)
	}
}

func TestProcessEmployeeEndpoints(t *testing.T) {
	store, server := newTestServer(t)
	store.SetSchedule("emp-1", standardSchedule())
	require.NoError(t, store.CreateEvent(context.Background(), &attendance.ClockEvent{
		ID: "ev-1", EmployeeID: "emp-1",
		EventTime: testDay.Add(8 * time.Hour), ShiftDate: testDay,
	}))
	require.NoError(t, store.CreateEvent(context.Background(), &attendance.ClockEvent{
		ID: "ev-2", EmployeeID: "emp-1",
		EventTime: testDay.Add(17 * time.Hour), ShiftDate: testDay,
	}))

	rangeBody := api.DateRangeRequest{From: "2025-03-10", To: "2025-03-10"}

	resp := postJSON(t, server.URL+"/api/employees/emp-1/events/process", rangeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingestStats := decodeBody[ingest.Stats](t, resp)
	require.Equal(t, 2, ingestStats.Processed)

	resp = postJSON(t, server.URL+"/api/employees/emp-1/process", rangeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runStats := decodeBody[pipeline.Stats](t, resp)
	assert.Equal(t, 2, runStats.Classified)
}

func TestProcessAttendance_InvalidRange(t *testing.T) {
	_, server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/attendance/process", api.ProcessAttendanceRequest{
		From: "2025-03-10", To: "2025-03-01"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[api.ErrorResponse](t, resp)
	assert.Contains(t, body.Details, "precedes")
}

// =============================================================================
// PUNCH AND SUMMARY ENDPOINTS
// =============================================================================

func TestGetPunch_NotFound(t *testing.T) {
	_, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/punches/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody[api.ErrorResponse](t, resp)
	assert.Equal(t, "Punch not found", body.Error)
}

func TestGetSummary(t *testing.T) {
	store, server := newTestServer(t)
	punches := []*attendance.Punch{
		{ID: "p-1", EmployeeID: "emp-1", PunchTime: testDay.Add(9 * time.Hour),
			ShiftDate: testDay, Type: attendance.ClockIn,
			State: attendance.StateStart, Status: attendance.StatusComplete},
		{ID: "p-2", EmployeeID: "emp-1", PunchTime: testDay.Add(17 * time.Hour),
			ShiftDate: testDay, Type: attendance.ClockOut,
			State: attendance.StateStop, Status: attendance.StatusComplete},
	}
	require.NoError(t, store.CreatePunches(context.Background(), punches))

	resp, err := http.Get(server.URL + "/api/employees/emp-1/summary?from=2025-03-10&to=2025-03-10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[summary.RangeSummary](t, resp)
	require.Len(t, result.Days, 1)
	assert.True(t, result.Days[0].Complete)
	assert.Equal(t, "8", result.TotalWorked.String())
}

func TestGetPunches_MissingRange(t *testing.T) {
	_, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/employees/emp-1/punches")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
