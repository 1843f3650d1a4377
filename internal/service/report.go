package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
)

// Period names a reporting range relative to now.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
	PeriodLastWeek  Period = "lastWeek"
	PeriodMonth     Period = "month"
	PeriodLastMonth Period = "lastMonth"
)

// AllPeriods lists the accepted periods in display order.
var AllPeriods = []Period{
	PeriodToday,
	PeriodYesterday,
	PeriodWeek,
	PeriodLastWeek,
	PeriodMonth,
	PeriodLastMonth,
}

// PeriodRange returns the [start, end) interval of period relative to now.
func PeriodRange(period Period, now time.Time) (start, end time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	// Weeks start on Monday
	weekday := int(today.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := today.AddDate(0, 0, -(weekday - 1))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch period {
	case PeriodToday:
		return today, tomorrow, nil
	case PeriodYesterday:
		return today.AddDate(0, 0, -1), today, nil
	case PeriodWeek:
		return weekStart, tomorrow, nil
	case PeriodLastWeek:
		return weekStart.AddDate(0, 0, -7), weekStart, nil
	case PeriodMonth:
		return monthStart, tomorrow, nil
	case PeriodLastMonth:
		return monthStart.AddDate(0, -1, 0), monthStart, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("invalid period: %s\nValid periods: %v", period, AllPeriods)
}

// TrackedOptions filter the locally tracked pull requests.
type TrackedOptions struct {
	Repository string
	Status     model.TrackedStatus
	Period     Period
	From       *time.Time
	To         *time.Time
	Limit      int
}

// ListTracked returns the tracked pull requests matching opts. A period takes
// precedence over explicit From and To bounds.
func ListTracked(opts TrackedOptions) ([]model.TrackedPullRequest, error) {
	listOpts := db.ListTrackedOptions{
		Limit: opts.Limit,
		From:  opts.From,
		To:    opts.To,
	}

	if opts.Period != "" {
		start, end, err := PeriodRange(opts.Period, time.Now())
		if err != nil {
			return nil, err
		}
		listOpts.From, listOpts.To = &start, &end
	}

	if opts.Repository != "" {
		repo, err := db.GetRepositoryByName(opts.Repository)
		if err != nil {
			return nil, fmt.Errorf("failed to get repository: %w", err)
		}
		if repo == nil {
			return nil, nil
		}
		listOpts.RepositoryID = &repo.ID
	}

	if opts.Status != "" {
		status := opts.Status
		listOpts.Status = &status
	}

	return db.ListTrackedPullRequests(listOpts)
}

// Summarize aggregates prs by repository and by status.
//
// Repositories are ordered by pull request count, then by name.
func Summarize(prs []model.PullRequest) *model.Summary {
	summary := &model.Summary{
		ByStatus: make(map[string]int),
	}

	byRepo := make(map[string]*model.RepositorySummary)
	for _, pr := range prs {
		summary.Total++
		summary.LinesAdded += pr.LinesAdded
		summary.LinesDeleted += pr.LinesDeleted
		summary.ByStatus[pr.Status]++

		name := pr.RepositoryName
		if name == "" {
			name = pr.RepositoryID
		}
		rs, ok := byRepo[name]
		if !ok {
			rs = &model.RepositorySummary{Repository: name}
			byRepo[name] = rs
		}
		rs.Count++
		rs.LinesAdded += pr.LinesAdded
		rs.LinesDeleted += pr.LinesDeleted

		if pr.CreatedAt != nil && (summary.Oldest == nil || pr.CreatedAt.Before(*summary.Oldest)) {
			created := *pr.CreatedAt
			summary.Oldest = &created
		}
	}

	summary.ByRepository = make([]model.RepositorySummary, 0, len(byRepo))
	for _, rs := range byRepo {
		summary.ByRepository = append(summary.ByRepository, *rs)
	}
	sort.Slice(summary.ByRepository, func(i, j int) bool {
		a, b := summary.ByRepository[i], summary.ByRepository[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Repository < b.Repository
	})

	return summary
}
