package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
)

func TestPeriodRange(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		period     Period
		start, end time.Time
	}{
		{PeriodToday, day(10, 14), day(10, 15)},
		{PeriodYesterday, day(10, 13), day(10, 14)},
		{PeriodWeek, day(10, 12), day(10, 15)},
		{PeriodLastWeek, day(10, 5), day(10, 12)},
		{PeriodMonth, day(10, 1), day(10, 15)},
		{PeriodLastMonth, day(9, 1), day(10, 1)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end, err := PeriodRange(tt.period, now)
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}

	_, _, err := PeriodRange("fortnight", now)
	assert.Error(t, err)
}

func TestPeriodRange_SundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	start, _, err := PeriodRange(PeriodWeek, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), start)
}

func TestListTracked(t *testing.T) {
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "tasks.db")))
	t.Cleanup(func() { db.Close() })

	api, err := db.UpsertRepository("api", apiRepo, "")
	require.NoError(t, err)
	web, err := db.UpsertRepository("web", webRepo, "")
	require.NoError(t, err)

	require.NoError(t, db.TrackPullRequest(&model.TrackedPullRequest{
		OCIID: "pr-1", RepositoryID: api.ID, Title: "One", SourceBranch: "a", TargetBranch: "main",
		Status: model.TrackedMerged,
	}))
	require.NoError(t, db.TrackPullRequest(&model.TrackedPullRequest{
		OCIID: "pr-2", RepositoryID: web.ID, Title: "Two", SourceBranch: "b", TargetBranch: "main",
		CreatedAt: time.Now().AddDate(0, -3, 0),
	}))

	all, err := ListTracked(TrackedOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byRepo, err := ListTracked(TrackedOptions{Repository: "web"})
	require.NoError(t, err)
	require.Len(t, byRepo, 1)
	assert.Equal(t, "Two", byRepo[0].Title)

	merged, err := ListTracked(TrackedOptions{Status: model.TrackedMerged})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "One", merged[0].Title)

	today, err := ListTracked(TrackedOptions{Period: PeriodToday})
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "pr-1", today[0].OCIID)

	unknown, err := ListTracked(TrackedOptions{Repository: "mobile"})
	require.NoError(t, err)
	assert.Empty(t, unknown)
}
