package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
	"github.com/thinktide/tasks/internal/service"
)

var (
	createSource      string
	createDestination string
	createTitle       string
	createDescription string
	createFile        string
	createEdit        bool
)

var prCreateCmd = &cobra.Command{
	Use:   "create <repo>",
	Short: "Create a pull request",
	Long: `Create a pull request in a configured repository.

The description can be given inline, read from a markdown file or written in
$EDITOR (defaults to vim). A markdown file may start with a '# Title' heading,
which is used when --title is not set.

Examples:
  tasks prs create api --source feature/cache --title "Add caching"
  tasks prs create api --source feature/cache --file cache.md
  tasks prs create api --source feature/cache --destination release --edit`,
	Args: cobra.ExactArgs(1),
	RunE: runPRCreate,
}

func init() {
	prCreateCmd.Flags().StringVarP(&createSource, "source", "s", "", "Source branch")
	prCreateCmd.Flags().StringVarP(&createDestination, "destination", "d", "", "Destination branch (defaults to the repository default branch)")
	prCreateCmd.Flags().StringVarP(&createTitle, "title", "t", "", "Pull request title")
	prCreateCmd.Flags().StringVar(&createDescription, "description", "", "Pull request description")
	prCreateCmd.Flags().StringVarP(&createFile, "file", "F", "", "Markdown file with the description")
	prCreateCmd.Flags().BoolVarP(&createEdit, "edit", "e", false, "Write the description in $EDITOR")
	_ = prCreateCmd.MarkFlagRequired("source")
	prCreateCmd.MarkFlagsMutuallyExclusive("description", "file", "edit")
}

func runPRCreate(cmd *cobra.Command, args []string) error {
	req := service.CreateRequest{
		Repository:        args[0],
		Title:             createTitle,
		Description:       createDescription,
		SourceBranch:      createSource,
		DestinationBranch: createDestination,
	}

	switch {
	case createFile != "":
		path, err := filepath.Abs(createFile)
		if err != nil {
			return err
		}
		if err := fillFromMarkdown(&req, path); err != nil {
			return err
		}
	case createEdit:
		path, err := writeDraft(req)
		if err != nil {
			return err
		}
		if err := editFile(path); err != nil {
			return err
		}
		if err := fillFromMarkdown(&req, path); err != nil {
			return err
		}
	}

	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("a title is required: pass --title or start the markdown with '# Title'")
	}

	svc, err := pullRequestService()
	if err != nil {
		return err
	}
	pr, err := svc.CreatePullRequest(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Created pull request %s\n", pr.ID)
	fmt.Fprintf(stdout, "  Title:    %s\n", pr.Title)
	fmt.Fprintf(stdout, "  Branches: %s -> %s\n", pr.SourceBranch, pr.TargetBranch)
	if req.MarkdownFile != "" {
		fmt.Fprintf(stdout, "  Markdown: %s\n", req.MarkdownFile)
	}
	return nil
}

func fillFromMarkdown(req *service.CreateRequest, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read markdown file: %w", err)
	}
	title, body := parseMarkdown(string(data))
	if req.Title == "" {
		req.Title = title
	}
	req.Description = body
	req.MarkdownFile = path
	return nil
}

const draftTemplate = `# %s

<!-- Describe the change. Lines in HTML comments are removed. -->
<!-- Source: %s, destination: %s -->

`

// writeDraft creates a markdown draft under the data directory. Drafts are
// kept so that tracked pull requests can point at them.
func writeDraft(req service.CreateRequest) (string, error) {
	dataDir, err := db.GetDataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataDir, "drafts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create drafts directory: %w", err)
	}

	destination := req.DestinationBranch
	if destination == "" {
		destination = "default branch"
	}
	path := filepath.Join(dir, model.NewULID()+".md")
	content := fmt.Sprintf(draftTemplate, req.Title, req.SourceBranch, destination)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write draft: %w", err)
	}
	return path, nil
}

// parseMarkdown splits a pull request draft into its title and body. The
// title is the first '# ' heading; single-line HTML comments are dropped.
func parseMarkdown(content string) (title, body string) {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "<!--") && strings.HasSuffix(trimmed, "-->") {
			continue
		}
		if title == "" && strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t\r"))
	}
	return title, strings.TrimSpace(strings.Join(lines, "\n"))
}
