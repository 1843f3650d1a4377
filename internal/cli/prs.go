package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/config"
	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
	"github.com/thinktide/tasks/internal/service"
)

var (
	prStatus string
	prLimit  int
	prAuthor string
	prForce  bool
)

var pullRequestsCmd = &cobra.Command{
	Use:     "pull-requests",
	Aliases: []string{"prs"},
	Short:   "Work with pull requests",
	Long: `Commands for working with pull requests.

Examples:
  tasks pull-requests list                 # Open pull requests of every repository
  tasks prs list api web --limit 5         # At most 5 per repository
  tasks prs show ocid1.devopspullrequest... # Details of one pull request
  tasks prs merge ocid1.devopspullrequest...`,
}

var prListCmd = &cobra.Command{
	Use:   "list [repos]...",
	Short: "List pull requests for repositories",
	Long: `List pull requests with their diff statistics.

Without arguments every configured repository is listed.`,
	RunE: runPRList,
}

var prShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  runPRShow,
}

var prDiffCmd = &cobra.Command{
	Use:   "diff <id>",
	Short: "Show the files changed by a pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  runPRDiff,
}

var prMergeCmd = &cobra.Command{
	Use:   "merge <id>",
	Short: "Fast-forward merge a pull request",
	Long: `Merge a pull request with a fast-forward merge and delete its source branch.

Examples:
  tasks prs merge ocid1.devopspullrequest...          # Asks for confirmation
  tasks prs merge ocid1.devopspullrequest... --force  # Skip confirmation`,
	Args: cobra.ExactArgs(1),
	RunE: runPRMerge,
}

var prApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pull request",
	Long: `Add yourself as a reviewer of a pull request and approve it.

Requires principal_id under [devops] in config.ini.`,
	Args: cobra.ExactArgs(1),
	RunE: runPRApprove,
}

var prReviewerCmd = &cobra.Command{
	Use:   "reviewer <id>",
	Short: "Check whether you review a pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  runPRReviewer,
}

var prSummaryCmd = &cobra.Command{
	Use:   "summary [repos]...",
	Short: "Summarize pull requests by repository and status",
	RunE:  runPRSummary,
}

func init() {
	prListCmd.Flags().StringVar(&prStatus, "status", "open", "Pull request status (open)")
	prListCmd.Flags().IntVar(&prLimit, "limit", 10, "Maximum pull requests per repository")
	prListCmd.Flags().StringVar(&prAuthor, "author", "", "Only pull requests created by this principal OCID")

	prSummaryCmd.Flags().StringVar(&prStatus, "status", "open", "Pull request status (open)")
	prSummaryCmd.Flags().IntVar(&prLimit, "limit", 10, "Maximum pull requests per repository")

	prMergeCmd.Flags().BoolVarP(&prForce, "force", "f", false, "Skip confirmation prompt")

	pullRequestsCmd.AddCommand(prListCmd)
	pullRequestsCmd.AddCommand(prShowCmd)
	pullRequestsCmd.AddCommand(prDiffCmd)
	pullRequestsCmd.AddCommand(prMergeCmd)
	pullRequestsCmd.AddCommand(prApproveCmd)
	pullRequestsCmd.AddCommand(prReviewerCmd)
	pullRequestsCmd.AddCommand(prCreateCmd)
	pullRequestsCmd.AddCommand(prSummaryCmd)
}

// listFilter builds the filter of list and summary. An unset --limit falls
// back to the pr.limit preference.
func listFilter(cmd *cobra.Command) (model.PullRequestFilter, error) {
	if !strings.EqualFold(prStatus, "open") {
		return model.PullRequestFilter{}, fmt.Errorf("invalid value %q for --status: choose from open", prStatus)
	}

	limit := prLimit
	if !cmd.Flags().Changed("limit") {
		stored, err := config.GetInt(config.KeyPRLimit)
		if err != nil {
			return model.PullRequestFilter{}, err
		}
		limit = stored
	}
	return model.NewPullRequestFilter(prStatus, limit, prAuthor), nil
}

// listRepos defaults to every alias of config.ini followed by those only
// known to the database, in sorted order.
func listRepos(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	stored, err := db.ListRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	names := app.cfg.RepoNames()
	for _, r := range stored {
		if _, ok := app.cfg.Repos[r.Name]; !ok {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func runPRList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	filter, err := listFilter(cmd)
	if err != nil {
		return err
	}
	repos, err := listRepos(args)
	if err != nil {
		return err
	}

	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	prs, err := svc.ListPullRequests(cmd.Context(), repos, filter)
	if err != nil {
		return err
	}

	if len(prs) == 0 && format == "table" {
		fmt.Fprintln(stdout, "No pull requests found.")
		return nil
	}
	return printPullRequests(stdout, format, prs)
}

func printPullRequests(w io.Writer, format string, prs []model.PullRequest) error {
	header := []string{"Title", "Status", "Created", "Changes"}
	rows := make([][]string, 0, len(prs))
	for _, pr := range prs {
		created := ""
		if pr.CreatedAt != nil {
			created = pr.CreatedAt.Local().Format(timeLayout)
		}
		rows = append(rows, []string{
			pr.Title,
			pr.Status,
			created,
			fmt.Sprintf("%d (+%d/-%d)", pr.TotalChanges, pr.LinesAdded, pr.LinesDeleted),
		})
	}
	if prs == nil {
		prs = []model.PullRequest{}
	}
	return render(w, format, header, rows, prs, true)
}

func runPRShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	pr, err := svc.GetPullRequest(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return writeJSON(stdout, pr)
	case "yaml":
		return writeYAML(stdout, pr)
	case "csv":
		return printPullRequests(stdout, format, []model.PullRequest{*pr})
	}
	printPullRequestDetails(stdout, pr)
	return nil
}

func printPullRequestDetails(w io.Writer, pr *model.PullRequest) {
	fmt.Fprintf(w, "Pull request: %s\n", pr.ID)
	fmt.Fprintf(w, "  Title:      %s\n", pr.Title)
	if pr.RepositoryName != "" {
		fmt.Fprintf(w, "  Repository: %s\n", pr.RepositoryName)
	}
	fmt.Fprintf(w, "  Status:     %s\n", pr.Status)
	if pr.Author != "" {
		fmt.Fprintf(w, "  Author:     %s\n", pr.Author)
	}
	fmt.Fprintf(w, "  Branches:   %s -> %s\n", pr.SourceBranch, pr.TargetBranch)
	if pr.CreatedAt != nil {
		fmt.Fprintf(w, "  Created:    %s (%s)\n", pr.CreatedAt.Local().Format(timeLayout), humanize.Time(*pr.CreatedAt))
	}
	if pr.UpdatedAt != nil {
		fmt.Fprintf(w, "  Updated:    %s\n", humanize.Time(*pr.UpdatedAt))
	}
	if len(pr.Reviewers) > 0 {
		fmt.Fprintln(w, "  Reviewers:")
		for _, r := range pr.Reviewers {
			name := r.PrincipalName
			if name == "" {
				name = r.PrincipalID
			}
			if r.Status != "" {
				name += " (" + r.Status + ")"
			}
			fmt.Fprintf(w, "    %s\n", name)
		}
	}
	if pr.Description != "" {
		fmt.Fprintf(w, "\n%s\n", pr.Description)
	}
}

func runPRDiff(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	pr, err := svc.GetPullRequest(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	diff, err := svc.GetPullRequestDiff(cmd.Context(), pr)
	if err != nil {
		return err
	}

	header := []string{"File", "Change", "Added", "Deleted"}
	rows := make([][]string, 0, len(diff.Files))
	for _, f := range diff.Files {
		rows = append(rows, []string{f.Path, f.ChangeType, fmt.Sprint(f.LinesAdded), fmt.Sprint(f.LinesDeleted)})
	}
	if err := render(stdout, format, header, rows, diff, false); err != nil {
		return err
	}

	if format == "table" {
		fmt.Fprintf(stdout, "\n%d file(s) changed, %d (+%d/-%d)\n",
			len(diff.Files), diff.Summary.TotalChanges, diff.Summary.LinesAdded, diff.Summary.LinesDeleted)
	}
	return nil
}

func runPRMerge(cmd *cobra.Command, args []string) error {
	svc, err := pullRequestService()
	if err != nil {
		return err
	}

	pr, err := svc.GetPullRequest(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printPullRequestDetails(stdout, pr)
	fmt.Fprintln(stdout)

	// Confirm merge unless --force
	if !prForce {
		ok, err := confirm(fmt.Sprintf("Merge %s into %s? [y/N]: ", pr.SourceBranch, pr.TargetBranch))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Cancelled")
			return nil
		}
	}

	merged, err := svc.Merge(cmd.Context(), pr.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Merged %s into %s\n", merged.SourceBranch, merged.TargetBranch)
	return nil
}

func runPRApprove(cmd *cobra.Command, args []string) error {
	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	pr, err := svc.Approve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Approved: %s\n", pr.Title)
	return nil
}

func runPRReviewer(cmd *cobra.Command, args []string) error {
	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	ok, err := svc.IsReviewer(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(stdout, "yes")
	} else {
		fmt.Fprintln(stdout, "no")
	}
	return nil
}

func runPRSummary(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	filter, err := listFilter(cmd)
	if err != nil {
		return err
	}
	repos, err := listRepos(args)
	if err != nil {
		return err
	}

	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	prs, err := svc.ListPullRequests(cmd.Context(), repos, filter)
	if err != nil {
		return err
	}
	summary := service.Summarize(prs)

	switch format {
	case "json":
		return writeJSON(stdout, summary)
	case "yaml":
		return writeYAML(stdout, summary)
	case "csv":
		return writeSummaryCSV(stdout, summary)
	}
	printSummary(stdout, summary)
	return nil
}

func printSummary(w io.Writer, summary *model.Summary) {
	fmt.Fprintf(w, "\nTotal: %d pull request(s), +%d/-%d lines\n", summary.Total, summary.LinesAdded, summary.LinesDeleted)
	if summary.Oldest != nil {
		fmt.Fprintf(w, "Oldest: %s\n", humanize.Time(*summary.Oldest))
	}
	fmt.Fprintln(w)

	if len(summary.ByRepository) > 0 {
		fmt.Fprintln(w, "By Repository:")
		table := newTable(w, nil)
		for _, rs := range summary.ByRepository {
			table.Append([]string{"  " + rs.Repository, fmt.Sprint(rs.Count), fmt.Sprintf("+%d/-%d", rs.LinesAdded, rs.LinesDeleted)})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	if len(summary.ByStatus) > 0 {
		fmt.Fprintln(w, "By Status:")
		table := newTable(w, nil)
		statuses := make([]string, 0, len(summary.ByStatus))
		for status := range summary.ByStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			table.Append([]string{"  " + status, fmt.Sprint(summary.ByStatus[status])})
		}
		table.Render()
	}
}

func writeSummaryCSV(w io.Writer, summary *model.Summary) error {
	rows := make([][]string, 0, len(summary.ByRepository))
	for _, rs := range summary.ByRepository {
		rows = append(rows, []string{rs.Repository, fmt.Sprint(rs.Count), fmt.Sprint(rs.LinesAdded), fmt.Sprint(rs.LinesDeleted)})
	}
	return writeCSV(w, []string{"Repository", "Count", "Lines Added", "Lines Deleted"}, rows)
}
