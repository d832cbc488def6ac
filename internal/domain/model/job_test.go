package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

func TestScheduledJobID_SameInstantAnyOffset(t *testing.T) {
	utc := time.Date(2026, 3, 2, 8, 55, 0, 0, time.UTC)
	tokyo := utc.In(time.FixedZone("JST", 9*60*60))
	denver := utc.In(time.FixedZone("MST", -7*60*60))

	want := "in_20260302085500"
	assert.Equal(t, want, model.ScheduledJobID(model.ActionClockIn, utc))
	assert.Equal(t, want, model.ScheduledJobID(model.ActionClockIn, tokyo))
	assert.Equal(t, want, model.ScheduledJobID(model.ActionClockIn, denver))
}

func TestScheduledJobID_DiffersByAction(t *testing.T) {
	at := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "out_20260302183000", model.ScheduledJobID(model.ActionClockOut, at))
	assert.NotEqual(t, model.ScheduledJobID(model.ActionClockIn, at), model.ScheduledJobID(model.ActionClockOut, at))
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Action
	}{
		{"in", model.ActionClockIn},
		{"clock_in", model.ActionClockIn},
		{"clock-in", model.ActionClockIn},
		{"out", model.ActionClockOut},
		{"clock_out", model.ActionClockOut},
		{"clock-out", model.ActionClockOut},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := model.ParseAction(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := model.ParseAction("lunch")
	assert.ErrorContains(t, err, "unknown action")
}
