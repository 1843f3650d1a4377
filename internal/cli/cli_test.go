package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thinktide/tasks/internal/apperr"
	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
	"github.com/thinktide/tasks/internal/service"
)

func TestFormatError_UserError(t *testing.T) {
	err := fmt.Errorf("loading: %w", apperr.NewConfigurationError(
		"Repository 'mobile' not found in configuration.",
		"Add it under [repos] in config.ini.",
		apperr.ErrRepositoryNotFound))

	out := formatError(err, false)
	assert.Contains(t, out, "Repository 'mobile' not found in configuration.")
	assert.Contains(t, out, "To fix this issue:\nAdd it under [repos] in config.ini.")
	assert.NotContains(t, out, "--debug")
	for _, line := range strings.Split(out, "\n") {
		assert.Equal(t, strings.TrimRight(line, " "), line)
	}
}

func TestFormatError_SystemError(t *testing.T) {
	err := apperr.NewSystemError("Could not create the DevOps client", "region=unknown", errors.New("no region"))

	out := formatError(err, false)
	assert.Contains(t, out, "Could not create the DevOps client")
	assert.Contains(t, out, "Run with --debug for more information.")
	assert.NotContains(t, out, "region=unknown")

	out = formatError(err, true)
	assert.Contains(t, out, "Debug information: region=unknown")
	assert.Contains(t, out, "Original error: no region")
}

func TestFormatError_ServiceError(t *testing.T) {
	err := &apperr.ServiceError{Operation: "get_pull_request", Status: 500, OpcRequestID: "req-1", Err: errors.New("internal")}

	assert.NotContains(t, formatError(err, false), "opc-request-id")
	assert.Contains(t, formatError(err, true), "status=500 opc-request-id=req-1")
}

func TestFormatError_StripsTypePrefix(t *testing.T) {
	err := errors.New(`*url.Error: Get "https://devops.example.com": dial tcp: timeout`)

	out := formatError(err, false)
	assert.Contains(t, out, `Get "https://devops.example.com": dial tcp: timeout`)
	assert.NotContains(t, out, "*url.Error")
	assert.Contains(t, out, "Run with --debug for more information.")

	assert.Contains(t, formatError(err, true), "*url.Error: Get")
}

func TestParseMarkdown(t *testing.T) {
	title, body := parseMarkdown(`# Add caching

<!-- Describe the change. -->
Adds a read-through cache.

- invalidated on write
`)
	assert.Equal(t, "Add caching", title)
	assert.Equal(t, "Adds a read-through cache.\n\n- invalidated on write", body)

	title, body = parseMarkdown("Just a body\n## Not a title\n")
	assert.Empty(t, title)
	assert.Equal(t, "Just a body\n## Not a title", body)
}

func TestPrintPullRequests(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 30, 0, 0, time.Local)
	prs := []model.PullRequest{{
		Title: "Add caching", Status: "OPEN", CreatedAt: &created,
		LinesAdded: 10, LinesDeleted: 2, TotalChanges: 12,
	}}

	var buf bytes.Buffer
	require.NoError(t, printPullRequests(&buf, "table", prs))
	out := buf.String()
	for _, want := range []string{"Title", "Status", "Created", "Changes", "Add caching", "2026-10-01 09:30", "12 (+10/-2)"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, printPullRequests(&buf, "csv", prs))
	assert.Equal(t, "Title,Status,Created,Changes\nAdd caching,OPEN,2026-10-01 09:30,12 (+10/-2)\n", buf.String())

	buf.Reset()
	require.NoError(t, printPullRequests(&buf, "json", nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, printPullRequests(&buf, "yaml", prs))
	assert.Contains(t, buf.String(), "title: Add caching")
	assert.Contains(t, buf.String(), "total_changes: 12")
}

func TestValidateValue(t *testing.T) {
	assert.NoError(t, validateValue("output.format", "yaml"))
	assert.Error(t, validateValue("output.format", "xml"))
	assert.NoError(t, validateValue("pr.limit", "25"))
	assert.Error(t, validateValue("pr.limit", "-1"))
	assert.Error(t, validateKey("data.location"))
}

func TestImportRepositories(t *testing.T) {
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "tasks.db")))
	t.Cleanup(func() { db.Close() })

	input := `alias,ocid,description
API,ocid1.devopsrepository.oc1..api,Backend
web, ocid1.devopsrepository.oc1..web
broken,not-an-ocid
`
	var out bytes.Buffer
	imported, skipped, err := importRepositories(strings.NewReader(input), &out, true)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)
	assert.Contains(t, out.String(), "Would import: api -> ocid1.devopsrepository.oc1..api")

	repos, err := db.ListRepositories()
	require.NoError(t, err)
	assert.Empty(t, repos)

	imported, _, err = importRepositories(strings.NewReader(input), &out, false)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	api, err := db.GetRepositoryByName("api")
	require.NoError(t, err)
	require.NotNil(t, api)
	assert.Equal(t, "Backend", api.Description)
}

func TestImportRepositories_InvalidHeader(t *testing.T) {
	_, _, err := importRepositories(strings.NewReader("name,id\n"), &bytes.Buffer{}, true)
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	oldOut, oldIn := stdout, stdin
	t.Cleanup(func() { stdout, stdin = oldOut, oldIn })

	var out bytes.Buffer
	stdout, stdin = &out, strings.NewReader("Yes\n")

	ok, err := confirm("Merge? [y/N]: ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Merge? [y/N]: ", out.String())

	stdin = strings.NewReader("")
	ok, err = confirm("Merge? [y/N]: ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 0m 30s", formatDuration(time.Hour+30*time.Second))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Add a c...", truncate("Add a cache layer", 10))

	cut := truncate("Ajouter le cache des dépôts distants", 20)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 20, utf8.RuneCountInString(cut))
	assert.True(t, strings.HasSuffix(cut, "..."))
}

func TestEditor(t *testing.T) {
	t.Setenv("EDITOR", "code --wait")
	assert.Equal(t, []string{"code", "--wait"}, editor())

	t.Setenv("EDITOR", "   ")
	assert.Equal(t, []string{"vim"}, editor())
}

func TestLogFailure_SkipsUserErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	oldLogger := app.logger
	app.logger = zap.New(core)
	t.Cleanup(func() { app.logger = oldLogger })

	logFailure(apperr.NewConfigurationError("Repository 'mobile' not found in configuration.", "", nil))
	assert.Zero(t, logs.Len())

	logFailure(errors.New("dial tcp: timeout"))
	entries := logs.FilterMessage("command failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "dial tcp: timeout", entries[0].ContextMap()["error"])
}

// listingAPI serves pull request listings; other DevOps calls are not expected.
type listingAPI struct {
	service.DevOpsAPI
	prs map[string][]model.PullRequest
}

func (f *listingAPI) ListPullRequests(_ context.Context, repositoryID string, _ model.PullRequestFilter) ([]model.PullRequest, error) {
	return f.prs[repositoryID], nil
}

func (f *listingAPI) GetCommitDiff(_ context.Context, _, _, _ string) (*model.Diff, error) {
	return &model.Diff{Files: []model.FileChange{{Path: "cache.go", LinesAdded: 10, LinesDeleted: 2}}}, nil
}

func setupListing(t *testing.T, prs map[string][]model.PullRequest) *bytes.Buffer {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "tasks.db")))
	t.Cleanup(func() { db.Close() })

	oldService, oldOut, oldFormat := app.service, stdout, formatFlag
	t.Cleanup(func() { app.service, stdout, formatFlag = oldService, oldOut, oldFormat })

	app.service = service.NewPullRequestService(&listingAPI{prs: prs}, service.Options{
		Repos: map[string]string{"api": "ocid1.devopsrepository.oc1..api"},
	})
	var out bytes.Buffer
	stdout = &out
	formatFlag = "table"
	prListCmd.SetContext(context.Background())
	return &out
}

func TestRunPRList_Empty(t *testing.T) {
	out := setupListing(t, nil)

	require.NoError(t, runPRList(prListCmd, []string{"api"}))
	assert.Equal(t, "No pull requests found.\n", out.String())
}

func TestRunPRList_BoxedTable(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	out := setupListing(t, map[string][]model.PullRequest{
		"ocid1.devopsrepository.oc1..api": {{
			ID: "pr-1", Title: "Add caching", Status: "OPEN", CreatedAt: &created,
			SourceBranch: "feature", TargetBranch: "main",
		}},
	})

	require.NoError(t, runPRList(prListCmd, []string{"api"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(lines[0], "+-"))
	for _, want := range []string{"Title", "Status", "Created", "Changes"} {
		assert.Contains(t, lines[1], want)
	}
	assert.Contains(t, out.String(), "Add caching")
	assert.Contains(t, out.String(), "12 (+10/-2)")
}
