package model

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID generates a new ULID
func NewULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Repository is a DevOps code repository known to the tool by a short alias.
type Repository struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	OCID          string     `json:"ocid" yaml:"ocid"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultBranch string     `json:"default_branch,omitempty" yaml:"default_branch,omitempty"`
	CreatedAt     time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

const StatusOpen = "OPEN"

// Reviewer is a principal assigned to review a pull request.
type Reviewer struct {
	PrincipalID   string `json:"principal_id" yaml:"principal_id"`
	PrincipalName string `json:"principal_name,omitempty" yaml:"principal_name,omitempty"`
	Status        string `json:"status,omitempty" yaml:"status,omitempty"`
}

// PullRequest is the application view of an OCI DevOps pull request.
type PullRequest struct {
	ID             string     `json:"id" yaml:"id"`
	Title          string     `json:"title" yaml:"title"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status         string     `json:"status" yaml:"status"`
	Author         string     `json:"author,omitempty" yaml:"author,omitempty"`
	RepositoryName string     `json:"repository_name,omitempty" yaml:"repository_name,omitempty"`
	RepositoryID   string     `json:"repository_id,omitempty" yaml:"repository_id,omitempty"`
	SourceBranch   string     `json:"source_branch,omitempty" yaml:"source_branch,omitempty"`
	TargetBranch   string     `json:"target_branch,omitempty" yaml:"target_branch,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	LinesAdded     int        `json:"lines_added" yaml:"lines_added"`
	LinesDeleted   int        `json:"lines_deleted" yaml:"lines_deleted"`
	TotalChanges   int        `json:"total_changes" yaml:"total_changes"`
	Reviewers      []Reviewer `json:"reviewers,omitempty" yaml:"reviewers,omitempty"`
}

// UpdateDiffStats copies the line statistics of diff onto the pull request.
//
// A diff that carries a summary wins; otherwise the per-file counts are summed.
func (p *PullRequest) UpdateDiffStats(diff Diff) {
	if diff.Summary != nil {
		p.LinesAdded = diff.Summary.LinesAdded
		p.LinesDeleted = diff.Summary.LinesDeleted
		p.TotalChanges = diff.Summary.TotalChanges
		return
	}
	s := diff.Summarize()
	p.LinesAdded = s.LinesAdded
	p.LinesDeleted = s.LinesDeleted
	p.TotalChanges = s.TotalChanges
}

// HasReviewer reports whether principalID is among the reviewers.
func (p *PullRequest) HasReviewer(principalID string) bool {
	for _, r := range p.Reviewers {
		if r.PrincipalID == principalID {
			return true
		}
	}
	return false
}

// PullRequestFilter narrows a pull request listing.
type PullRequestFilter struct {
	Status string
	Limit  int
	Author string
}

// NewPullRequestFilter returns a filter with the listing defaults applied.
//
// Status is upper-cased because OCI lifecycle details filters are upper case.
func NewPullRequestFilter(status string, limit int, author string) PullRequestFilter {
	if status == "" {
		status = StatusOpen
	}
	if limit <= 0 {
		limit = 10
	}
	return PullRequestFilter{
		Status: strings.ToUpper(status),
		Limit:  limit,
		Author: author,
	}
}

// Params maps the filter onto OCI list parameter names, omitting empty values.
func (f PullRequestFilter) Params() map[string]string {
	params := make(map[string]string)
	if f.Status != "" {
		params["lifecycle_details"] = strings.ToUpper(f.Status)
	}
	if f.Limit > 0 {
		params["limit"] = strconv.Itoa(f.Limit)
	}
	if f.Author != "" {
		params["created_by"] = f.Author
	}
	return params
}

type FileChange struct {
	Path         string `json:"path" yaml:"path"`
	ChangeType   string `json:"change_type,omitempty" yaml:"change_type,omitempty"`
	LinesAdded   int    `json:"lines_added" yaml:"lines_added"`
	LinesDeleted int    `json:"lines_deleted" yaml:"lines_deleted"`
}

type DiffSummary struct {
	LinesAdded   int `json:"lines_added" yaml:"lines_added"`
	LinesDeleted int `json:"lines_deleted" yaml:"lines_deleted"`
	TotalChanges int `json:"total_changes" yaml:"total_changes"`
}

// Diff is the change set between the two branches of a pull request.
type Diff struct {
	Files   []FileChange `json:"files" yaml:"files"`
	Summary *DiffSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Summarize computes a summary from the per-file counts.
func (d Diff) Summarize() DiffSummary {
	var s DiffSummary
	for _, f := range d.Files {
		s.LinesAdded += f.LinesAdded
		s.LinesDeleted += f.LinesDeleted
	}
	s.TotalChanges = s.LinesAdded + s.LinesDeleted
	return s
}

type TrackedStatus string

const (
	TrackedCreated  TrackedStatus = "created"
	TrackedApproved TrackedStatus = "approved"
	TrackedMerged   TrackedStatus = "merged"
	TrackedClosed   TrackedStatus = "closed"
	TrackedFailed   TrackedStatus = "failed"
)

var AllTrackedStatuses = []TrackedStatus{
	TrackedCreated,
	TrackedApproved,
	TrackedMerged,
	TrackedClosed,
	TrackedFailed,
}

// TrackedPullRequest is the local record of a pull request this tool acted on.
type TrackedPullRequest struct {
	ID           string        `json:"id" yaml:"id"`
	OCIID        string        `json:"oci_id,omitempty" yaml:"oci_id,omitempty"`
	RepositoryID string        `json:"repository_id" yaml:"repository_id"`
	Repository   *Repository   `json:"repository,omitempty" yaml:"repository,omitempty"`
	Title        string        `json:"title" yaml:"title"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	SourceBranch string        `json:"source_branch" yaml:"source_branch"`
	TargetBranch string        `json:"target_branch" yaml:"target_branch"`
	Status       TrackedStatus `json:"status" yaml:"status"`
	MarkdownFile string        `json:"markdown_file,omitempty" yaml:"markdown_file,omitempty"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt    *time.Time    `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "PENDING"
	ActivitySucceeded ActivityStatus = "SUCCEEDED"
	ActivityFailed    ActivityStatus = "FAILED"
)

// Activity records one mutating operation against the DevOps service.
type Activity struct {
	ID            string         `json:"id" yaml:"id"`
	Operation     string         `json:"operation" yaml:"operation"`
	Status        ActivityStatus `json:"status" yaml:"status"`
	Result        string         `json:"result,omitempty" yaml:"result,omitempty"`
	PullRequestID string         `json:"pull_request_id,omitempty" yaml:"pull_request_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// RepositorySummary aggregates pull requests of one repository.
type RepositorySummary struct {
	Repository   string `json:"repository" yaml:"repository"`
	Count        int    `json:"count" yaml:"count"`
	LinesAdded   int    `json:"lines_added" yaml:"lines_added"`
	LinesDeleted int    `json:"lines_deleted" yaml:"lines_deleted"`
}

// Summary contains aggregated pull request data
type Summary struct {
	Total        int                 `json:"total" yaml:"total"`
	LinesAdded   int                 `json:"lines_added" yaml:"lines_added"`
	LinesDeleted int                 `json:"lines_deleted" yaml:"lines_deleted"`
	ByRepository []RepositorySummary `json:"by_repository" yaml:"by_repository"`
	ByStatus     map[string]int      `json:"by_status" yaml:"by_status"`
	Oldest       *time.Time          `json:"oldest,omitempty" yaml:"oldest,omitempty"`
}

// MergeDetails are the options sent with a merge request.
type MergeDetails struct {
	MergeStrategy   string
	CommitMessage   string
	PostMergeAction string
}

// NewPullRequest describes a pull request to create.
type NewPullRequest struct {
	Repository        string
	RepositoryID      string
	Title             string
	Description       string
	SourceBranch      string
	DestinationBranch string
	MarkdownFile      string
}
