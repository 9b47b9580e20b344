package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    Schedule
		wantErr bool
	}{
		{name: "every interval", spec: "every 30m", want: Schedule{Kind: ScheduleKindEvery, EveryMs: 30 * 60 * 1000}},
		{name: "padded", spec: "  every 1h ", want: Schedule{Kind: ScheduleKindEvery, EveryMs: time.Hour.Milliseconds()}},
		{name: "cron expression", spec: "0 3 * * *", want: Schedule{Kind: ScheduleKindCron, Expr: "0 3 * * *"}},
		{name: "descriptor", spec: "@hourly", want: Schedule{Kind: ScheduleKindCron, Expr: "@hourly"}},
		{name: "zoned cron", spec: "CRON_TZ=UTC 30 2 * * 1", want: Schedule{Kind: ScheduleKindCron, Expr: "CRON_TZ=UTC 30 2 * * 1"}},
		{name: "at time", spec: "at 2030-01-01T00:00:00Z", want: Schedule{Kind: ScheduleKindAt, At: "2030-01-01T00:00:00Z"}},
		{name: "past at time", spec: "at 2020-01-01T00:00:00Z", want: Schedule{Kind: ScheduleKindAt, At: "2020-01-01T00:00:00Z"}},
		{name: "empty", spec: "  ", wantErr: true},
		{name: "bad interval", spec: "every soon", wantErr: true},
		{name: "zero interval", spec: "every 0s", wantErr: true},
		{name: "sub-millisecond interval", spec: "every 500us", wantErr: true},
		{name: "bad at time", spec: "at tomorrow", wantErr: true},
		{name: "six fields", spec: "0 0 3 * * *", wantErr: true},
		{name: "bad cron", spec: "not a schedule", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleNext(t *testing.T) {
	from := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec string
		from time.Time
		want time.Time
	}{
		{name: "hourly reconcile", spec: "every 1h", from: from, want: from.Add(time.Hour)},
		{name: "odd interval", spec: "every 90m", from: from, want: from.Add(90 * time.Minute)},
		{name: "nightly later today", spec: "0 3 * * *", from: time.Date(2026, 3, 10, 2, 59, 0, 0, time.UTC), want: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)},
		{name: "nightly tomorrow", spec: "0 3 * * *", from: from, want: time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)},
		{name: "strictly after from", spec: "0 3 * * *", from: time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), want: time.Date(2026, 3, 12, 3, 0, 0, 0, time.UTC)},
		{name: "hourly descriptor", spec: "@hourly", from: from, want: time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)},
		{name: "weekly on monday", spec: "30 2 * * 1", from: from, want: time.Date(2026, 3, 16, 2, 30, 0, 0, time.UTC)},
		{name: "future at", spec: "at 2030-01-01T00:00:00Z", from: from, want: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "missed at catches up", spec: "at 2020-01-01T00:00:00Z", from: from, want: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchedule(tt.spec)
			require.NoError(t, err)

			got, err := s.Next(tt.from)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestScheduleNextZoned(t *testing.T) {
	if _, err := time.LoadLocation("Asia/Tokyo"); err != nil {
		t.Skip("zoneinfo unavailable")
	}
	s, err := ParseSchedule("CRON_TZ=Asia/Tokyo 0 3 * * *")
	require.NoError(t, err)

	// 21:00 JST on the 10th; 03:00 JST on the 11th is 18:00 UTC on the 10th.
	got, err := s.Next(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC).Equal(got), "got %s", got)
}

func TestScheduleNextErrors(t *testing.T) {
	from := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule Schedule
		contains string
	}{
		{name: "at without time", schedule: Schedule{Kind: ScheduleKindAt}, contains: "no time"},
		{name: "at not RFC 3339", schedule: Schedule{Kind: ScheduleKindAt, At: "2026-03-10 12:00"}, contains: "invalid at time"},
		{name: "every without interval", schedule: Schedule{Kind: ScheduleKindEvery}, contains: "positive interval"},
		{name: "negative interval", schedule: Schedule{Kind: ScheduleKindEvery, EveryMs: -1000}, contains: "positive interval"},
		{name: "cron without expression", schedule: Schedule{Kind: ScheduleKindCron}, contains: "no expression"},
		{name: "cron out of range", schedule: Schedule{Kind: ScheduleKindCron, Expr: "61 * * * *"}, contains: "invalid cron expression"},
		{name: "unknown zone", schedule: Schedule{Kind: ScheduleKindCron, Expr: "CRON_TZ=Nowhere/Special 0 3 * * *"}, contains: "invalid cron expression"},
		{name: "never fires", schedule: Schedule{Kind: ScheduleKindCron, Expr: "0 0 30 2 *"}, contains: "never fires"},
		{name: "unknown kind", schedule: Schedule{Kind: "weekly"}, contains: "unknown schedule kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.schedule.Next(from)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestCalculateNextRun(t *testing.T) {
	s, err := ParseSchedule("every 1h")
	require.NoError(t, err)

	before := time.Now().Add(time.Hour).UnixMilli()
	next, err := CalculateNextRun(s)
	after := time.Now().Add(time.Hour).UnixMilli()

	require.NoError(t, err)
	assert.GreaterOrEqual(t, next, before)
	assert.LessOrEqual(t, next, after)

	_, err = CalculateNextRun(Schedule{Kind: ScheduleKindEvery})
	assert.Error(t, err)
}
