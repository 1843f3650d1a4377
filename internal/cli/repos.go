package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
)

var repoRemoveForce bool

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage repository aliases",
	Long: `Manage the repositories known to tasks.

Repositories under [repos] in config.ini are synced on every run. Aliases added
here are stored in the local database only.

Examples:
  tasks repos list
  tasks repos add api ocid1.devopsrepository.oc1...
  tasks repos remove api
  tasks repos import repos.csv`,
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known repositories",
	RunE:  runReposList,
}

var reposAddCmd = &cobra.Command{
	Use:   "add <alias> <ocid>",
	Short: "Add or update a repository alias",
	Args:  cobra.ExactArgs(2),
	RunE:  runReposAdd,
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove <alias>",
	Short: "Remove a repository and its tracked pull requests",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposRemove,
}

var reposSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh default branches from OCI DevOps",
	RunE:  runReposSync,
}

func init() {
	reposRemoveCmd.Flags().BoolVarP(&repoRemoveForce, "force", "f", false, "Skip confirmation prompt")

	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposAddCmd)
	reposCmd.AddCommand(reposRemoveCmd)
	reposCmd.AddCommand(reposSyncCmd)
	reposCmd.AddCommand(reposImportCmd)
}

func runReposList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	repos, err := db.ListRepositories()
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	if len(repos) == 0 && format == "table" {
		fmt.Fprintln(stdout, "No repositories configured")
		return nil
	}
	if repos == nil {
		repos = []model.Repository{}
	}

	header := []string{"Alias", "OCID", "Default Branch", "Source"}
	rows := make([][]string, 0, len(repos))
	for _, r := range repos {
		source := "local"
		if _, ok := app.cfg.Repos[r.Name]; ok {
			source = "config.ini"
		}
		rows = append(rows, []string{r.Name, r.OCID, r.DefaultBranch, source})
	}
	return render(stdout, format, header, rows, repos, false)
}

func runReposAdd(cmd *cobra.Command, args []string) error {
	alias := strings.ToLower(args[0])
	ocid := args[1]
	if !strings.HasPrefix(ocid, "ocid1.") {
		return fmt.Errorf("invalid OCID %q: repository OCIDs start with ocid1.devopsrepository", ocid)
	}

	repo, err := db.UpsertRepository(alias, ocid, "")
	if err != nil {
		return fmt.Errorf("failed to add repository: %w", err)
	}
	fmt.Fprintf(stdout, "Repository %s -> %s\n", repo.Name, repo.OCID)
	return nil
}

func runReposRemove(cmd *cobra.Command, args []string) error {
	alias := strings.ToLower(args[0])

	repo, err := db.GetRepositoryByName(alias)
	if err != nil {
		return fmt.Errorf("failed to get repository: %w", err)
	}
	if repo == nil {
		fmt.Fprintf(stdout, "Repository %s not found\n", alias)
		return nil
	}

	fmt.Fprintf(stdout, "Repository: %s\n", repo.Name)
	fmt.Fprintf(stdout, "  OCID: %s\n", repo.OCID)
	if _, ok := app.cfg.Repos[alias]; ok {
		fmt.Fprintln(stdout, "  Note: it is listed in config.ini and will be re-added on the next run")
	}
	fmt.Fprintln(stdout)

	// Confirm removal unless --force
	if !repoRemoveForce {
		ok, err := confirm("Remove this repository and its tracked pull requests? [y/N]: ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Cancelled")
			return nil
		}
	}

	if _, err := db.DeleteRepository(alias); err != nil {
		return fmt.Errorf("failed to remove repository: %w", err)
	}
	fmt.Fprintln(stdout, "Repository removed")
	return nil
}

func runReposSync(cmd *cobra.Command, args []string) error {
	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	repos, err := db.ListRepositories()
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	var failed int
	for _, r := range repos {
		remote, err := svc.GetRepository(cmd.Context(), r.Name)
		if err != nil {
			fmt.Fprintf(stdout, "  %s: %s\n", r.Name, formatError(err, debugFlag))
			failed++
			continue
		}
		fmt.Fprintf(stdout, "  %s: %s\n", r.Name, remote.DefaultBranch)
	}
	fmt.Fprintf(stdout, "Synced %d repositories (%d failed)\n", len(repos)-failed, failed)
	return nil
}
