package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
	"github.com/thinktide/tasks/internal/service"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the activity log",
	Long: `Show the merges, approvals and pull request creations run by tasks.

Examples:
  tasks history              # Last 10 operations
  tasks history --limit 50   # Last 50 operations`,
	RunE: runHistory,
}

var (
	trackedRepo   string
	trackedStatus string
	trackedPeriod string
	trackedFrom   string
	trackedTo     string
	trackedLimit  int
)

var trackedCmd = &cobra.Command{
	Use:   "tracked",
	Short: "Show pull requests tracked locally",
	Long: `Show pull requests created, approved or merged with tasks.

Periods:
  today, yesterday, week, lastWeek, month, lastMonth

Examples:
  tasks tracked                        # Most recent first
  tasks tracked --repo api             # Only the 'api' repository
  tasks tracked --status merged        # Only merged pull requests
  tasks tracked --period week          # Tracked this week
  tasks tracked --from 2024-01-01      # Tracked since a date`,
	RunE: runTracked,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of operations to show")

	trackedCmd.Flags().StringVar(&trackedRepo, "repo", "", "Repository alias")
	trackedCmd.Flags().StringVar(&trackedStatus, "status", "", "Tracked status (created, approved, merged, closed, failed)")
	trackedCmd.Flags().StringVar(&trackedPeriod, "period", "", "Report period")
	trackedCmd.Flags().StringVar(&trackedFrom, "from", "", "Start date (YYYY-MM-DD)")
	trackedCmd.Flags().StringVar(&trackedTo, "to", "", "End date (YYYY-MM-DD)")
	trackedCmd.Flags().IntVarP(&trackedLimit, "limit", "n", 0, "Number of pull requests to show (0 = all)")
	trackedCmd.MarkFlagsMutuallyExclusive("period", "from")
	trackedCmd.MarkFlagsMutuallyExclusive("period", "to")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	activity, err := db.ListActivity(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list activity: %w", err)
	}
	if len(activity) == 0 && format == "table" {
		fmt.Fprintln(stdout, "No activity found")
		return nil
	}
	if activity == nil {
		activity = []model.Activity{}
	}
	return printActivity(stdout, format, activity)
}

func printActivity(w io.Writer, format string, activity []model.Activity) error {
	header := []string{"ID", "Operation", "Status", "Pull Request", "When", "Result"}
	rows := make([][]string, 0, len(activity))
	for _, a := range activity {
		when := a.CreatedAt.Local().Format(timeLayout)
		if format == "table" {
			when = humanize.Time(a.CreatedAt)
		}
		rows = append(rows, []string{
			a.ID,
			a.Operation,
			string(a.Status),
			a.PullRequestID,
			when,
			truncate(firstLine(a.Result), 50),
		})
	}
	return render(w, format, header, rows, activity, false)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func runTracked(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	opts := service.TrackedOptions{
		Repository: strings.ToLower(trackedRepo),
		Period:     service.Period(trackedPeriod),
		Limit:      trackedLimit,
	}

	if trackedStatus != "" {
		status := model.TrackedStatus(strings.ToLower(trackedStatus))
		valid := false
		for _, s := range model.AllTrackedStatuses {
			if s == status {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid status: %s\nValid statuses: %v", trackedStatus, model.AllTrackedStatuses)
		}
		opts.Status = status
	}

	// Parse date filters
	if trackedFrom != "" {
		t, err := time.ParseInLocation("2006-01-02", trackedFrom, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --from date (use YYYY-MM-DD): %w", err)
		}
		opts.From = &t
	}
	if trackedTo != "" {
		t, err := time.ParseInLocation("2006-01-02", trackedTo, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --to date (use YYYY-MM-DD): %w", err)
		}
		// Add a day to include the entire 'to' date
		t = t.AddDate(0, 0, 1)
		opts.To = &t
	}

	tracked, err := service.ListTracked(opts)
	if err != nil {
		return fmt.Errorf("failed to list tracked pull requests: %w", err)
	}
	if len(tracked) == 0 && format == "table" {
		fmt.Fprintln(stdout, "No tracked pull requests found")
		return nil
	}
	if tracked == nil {
		tracked = []model.TrackedPullRequest{}
	}
	return printTracked(stdout, format, tracked)
}

func printTracked(w io.Writer, format string, tracked []model.TrackedPullRequest) error {
	header := []string{"ID", "Repository", "Title", "Branches", "Status", "Date"}
	rows := make([][]string, 0, len(tracked))
	for _, p := range tracked {
		repo := ""
		if p.Repository != nil {
			repo = p.Repository.Name
		}
		title := p.Title
		if format == "table" {
			title = truncate(title, 35)
		}
		rows = append(rows, []string{
			p.ID,
			repo,
			title,
			p.SourceBranch + " -> " + p.TargetBranch,
			string(p.Status),
			p.CreatedAt.Local().Format(timeLayout),
		})
	}
	return render(w, format, header, rows, tracked, false)
}
