package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/attendance-engine/attendance"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "08:00", want: "08:00"},
		{input: "8:5", want: "08:05"},
		{input: "23:59", want: "23:59"},
		{input: "12:30:45", want: "12:30"}, // seconds ignored
		{input: "00:00", want: "00:00"},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "noon", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := attendance.ParseClockTime(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got.String())
	}
}

func TestClockTimeOf(t *testing.T) {
	at := time.Date(2025, time.March, 10, 12, 31, 59, 0, time.UTC)
	assert.Equal(t, attendance.NewClockTime(12, 31), attendance.ClockTimeOf(at))
}

func TestWithinFlexibility_InclusiveBounds(t *testing.T) {
	scheduled := attendance.NewClockTime(12, 0)

	assert.True(t, attendance.NewClockTime(12, 0).WithinFlexibility(scheduled, 0))
	assert.True(t, attendance.NewClockTime(11, 45).WithinFlexibility(scheduled, 15))
	assert.True(t, attendance.NewClockTime(12, 15).WithinFlexibility(scheduled, 15))
	assert.False(t, attendance.NewClockTime(11, 44).WithinFlexibility(scheduled, 15))
	assert.False(t, attendance.NewClockTime(12, 16).WithinFlexibility(scheduled, 15))
}

func TestMinutesBetween_UsesFullTimestamps(t *testing.T) {
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, attendance.MinutesBetween(
		day.Add(12*time.Hour), day.Add(12*time.Hour+30*time.Minute)))

	// A pair spanning midnight measures elapsed time, not clock faces.
	assert.Equal(t, 60, attendance.MinutesBetween(
		day.Add(23*time.Hour+30*time.Minute), day.Add(24*time.Hour+30*time.Minute)))
}
