package ocicloud

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/devops"
	"go.uber.org/zap"

	"github.com/thinktide/tasks/internal/apperr"
	"github.com/thinktide/tasks/internal/model"
)

// maxPageSize is the largest page the DevOps list endpoints accept.
const maxPageSize = 100

// sdkClient is the subset of [devops.DevopsClient] used by [DevOpsClient].
type sdkClient interface {
	ListPullRequests(ctx context.Context, request devops.ListPullRequestsRequest) (devops.ListPullRequestsResponse, error)
	GetPullRequest(ctx context.Context, request devops.GetPullRequestRequest) (devops.GetPullRequestResponse, error)
	GetCommitDiff(ctx context.Context, request devops.GetCommitDiffRequest) (devops.GetCommitDiffResponse, error)
	MergePullRequest(ctx context.Context, request devops.MergePullRequestRequest) (devops.MergePullRequestResponse, error)
	ReviewPullRequest(ctx context.Context, request devops.ReviewPullRequestRequest) (devops.ReviewPullRequestResponse, error)
	UpdatePullRequest(ctx context.Context, request devops.UpdatePullRequestRequest) (devops.UpdatePullRequestResponse, error)
	GetRepository(ctx context.Context, request devops.GetRepositoryRequest) (devops.GetRepositoryResponse, error)
	CreatePullRequest(ctx context.Context, request devops.CreatePullRequestRequest) (devops.CreatePullRequestResponse, error)
}

// DevOpsClient adapts the OCI DevOps SDK client to the application model.
type DevOpsClient struct {
	api    sdkClient
	retry  *common.RetryPolicy
	logger *zap.Logger
}

// NewDevOpsClient wraps api. A nil retry policy leaves the SDK default in place.
func NewDevOpsClient(api sdkClient, retry *common.RetryPolicy, logger *zap.Logger) *DevOpsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DevOpsClient{api: api, retry: retry, logger: logger}
}

func (c *DevOpsClient) metadata() common.RequestMetadata {
	return common.RequestMetadata{RetryPolicy: c.retry}
}

func retryToken() *string {
	return common.String(uuid.NewString())
}

// ListPullRequests returns up to filter.Limit pull requests of repository repositoryID,
// following pagination as needed.
func (c *DevOpsClient) ListPullRequests(ctx context.Context, repositoryID string, filter model.PullRequestFilter) ([]model.PullRequest, error) {
	var (
		result []model.PullRequest
		page   *string
	)

	params := filter.Params()
	args := map[string]any{"repository_id": repositoryID}
	for k, v := range params {
		args[k] = v
	}

	for {
		pageSize := maxPageSize
		if filter.Limit > 0 && filter.Limit-len(result) < pageSize {
			pageSize = filter.Limit - len(result)
		}

		req := devops.ListPullRequestsRequest{
			RepositoryId:    common.String(repositoryID),
			Limit:           common.Int(pageSize),
			Page:            page,
			RequestMetadata: c.metadata(),
		}
		if status, ok := params["lifecycle_details"]; ok {
			req.LifecycleDetails = devops.PullRequestLifecycleDetailsEnum(status)
		}
		if author, ok := params["created_by"]; ok {
			req.CreatedBy = common.String(author)
		}

		var resp devops.ListPullRequestsResponse
		err := call(c.logger, "list_pull_requests", args, apperr.ErrRepositoryNotFound, func() error {
			var err error
			resp, err = c.api.ListPullRequests(ctx, req)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			result = append(result, fromSummary(item))
		}

		if resp.OpcNextPage == nil || *resp.OpcNextPage == "" || len(resp.Items) == 0 {
			break
		}
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
		page = resp.OpcNextPage
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// GetPullRequest fetches one pull request with its reviewers.
func (c *DevOpsClient) GetPullRequest(ctx context.Context, id string) (*model.PullRequest, error) {
	var resp devops.GetPullRequestResponse
	err := call(c.logger, "get_pull_request", map[string]any{"pull_request_id": id}, apperr.ErrPullRequestNotFound, func() error {
		var err error
		resp, err = c.api.GetPullRequest(ctx, devops.GetPullRequestRequest{
			PullRequestId:   common.String(id),
			RequestMetadata: c.metadata(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	pr := fromPullRequest(resp.PullRequest)
	return &pr, nil
}

// GetCommitDiff compares targetVersion against baseVersion in repository repositoryID.
// The summary is the sum of the per-file line counts.
func (c *DevOpsClient) GetCommitDiff(ctx context.Context, repositoryID, baseVersion, targetVersion string) (*model.Diff, error) {
	var resp devops.GetCommitDiffResponse
	args := map[string]any{"repository_id": repositoryID, "base_version": baseVersion, "target_version": targetVersion}
	err := call(c.logger, "get_commit_diff", args, nil, func() error {
		var err error
		resp, err = c.api.GetCommitDiff(ctx, devops.GetCommitDiffRequest{
			RepositoryId:    common.String(repositoryID),
			BaseVersion:     common.String(baseVersion),
			TargetVersion:   common.String(targetVersion),
			RequestMetadata: c.metadata(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	diff := &model.Diff{}
	for _, change := range resp.Changes {
		path := deref(change.NewPath)
		if path == "" {
			path = deref(change.OldPath)
		}
		diff.Files = append(diff.Files, model.FileChange{
			Path:         path,
			ChangeType:   deref(change.ChangeType),
			LinesAdded:   derefInt(change.AddedLinesCount),
			LinesDeleted: derefInt(change.DeletedLinesCount),
		})
	}
	summary := diff.Summarize()
	diff.Summary = &summary
	return diff, nil
}

// MergePullRequest executes a merge of pull request id.
func (c *DevOpsClient) MergePullRequest(ctx context.Context, id string, details model.MergeDetails) error {
	args := map[string]any{"pull_request_id": id, "merge_strategy": details.MergeStrategy}
	return call(c.logger, "merge_pull_request", args, apperr.ErrPullRequestNotFound, func() error {
		_, err := c.api.MergePullRequest(ctx, devops.MergePullRequestRequest{
			PullRequestId: common.String(id),
			MergePullRequestDetails: devops.ExecuteMergePullRequestDetails{
				CommitMessage:   common.String(details.CommitMessage),
				MergeStrategy:   devops.MergeStrategyEnum(details.MergeStrategy),
				PostMergeAction: devops.ExecuteMergePullRequestDetailsPostMergeActionEnum(details.PostMergeAction),
			},
			OpcRetryToken:   retryToken(),
			RequestMetadata: c.metadata(),
		})
		return err
	})
}

// ReviewPullRequest submits a review action such as APPROVE on pull request id.
func (c *DevOpsClient) ReviewPullRequest(ctx context.Context, id, action string) error {
	args := map[string]any{"pull_request_id": id, "action": action}
	return call(c.logger, "review_pull_request", args, apperr.ErrPullRequestNotFound, func() error {
		_, err := c.api.ReviewPullRequest(ctx, devops.ReviewPullRequestRequest{
			PullRequestId: common.String(id),
			ReviewPullRequestDetails: devops.ReviewPullRequestDetails{
				Action: devops.ReviewPullRequestDetailsActionEnum(action),
			},
			OpcRetryToken:   retryToken(),
			RequestMetadata: c.metadata(),
		})
		return err
	})
}

// UpdateReviewers replaces the reviewer list of pull request id.
func (c *DevOpsClient) UpdateReviewers(ctx context.Context, id string, principalIDs []string) error {
	reviewers := make([]devops.UpdateReviewerDetails, 0, len(principalIDs))
	for _, p := range principalIDs {
		reviewers = append(reviewers, devops.UpdateReviewerDetails{PrincipalId: common.String(p)})
	}

	args := map[string]any{"pull_request_id": id, "reviewers": len(principalIDs)}
	return call(c.logger, "update_pull_request", args, apperr.ErrPullRequestNotFound, func() error {
		_, err := c.api.UpdatePullRequest(ctx, devops.UpdatePullRequestRequest{
			PullRequestId: common.String(id),
			UpdatePullRequestDetails: devops.UpdatePullRequestDetails{
				Reviewers: reviewers,
			},
			RequestMetadata: c.metadata(),
		})
		return err
	})
}

// GetRepository fetches repository metadata, including its default branch.
func (c *DevOpsClient) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	var resp devops.GetRepositoryResponse
	err := call(c.logger, "get_repository", map[string]any{"repository_id": id}, apperr.ErrRepositoryNotFound, func() error {
		var err error
		resp, err = c.api.GetRepository(ctx, devops.GetRepositoryRequest{
			RepositoryId:    common.String(id),
			RequestMetadata: c.metadata(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	repo := resp.Repository
	return &model.Repository{
		Name:          deref(repo.Name),
		OCID:          deref(repo.Id),
		Description:   deref(repo.Description),
		DefaultBranch: strings.TrimPrefix(deref(repo.DefaultBranch), "refs/heads/"),
	}, nil
}

// CreatePullRequest opens a new pull request.
func (c *DevOpsClient) CreatePullRequest(ctx context.Context, in model.NewPullRequest) (*model.PullRequest, error) {
	details := devops.CreatePullRequestDetails{
		DisplayName:       common.String(in.Title),
		RepositoryId:      common.String(in.RepositoryID),
		SourceBranch:      common.String(in.SourceBranch),
		DestinationBranch: common.String(in.DestinationBranch),
	}
	if in.Description != "" {
		details.Description = common.String(in.Description)
	}

	var resp devops.CreatePullRequestResponse
	args := map[string]any{
		"repository_id":      in.RepositoryID,
		"source_branch":      in.SourceBranch,
		"destination_branch": in.DestinationBranch,
	}
	err := call(c.logger, "create_pull_request", args, nil, func() error {
		var err error
		resp, err = c.api.CreatePullRequest(ctx, devops.CreatePullRequestRequest{
			CreatePullRequestDetails: details,
			OpcRetryToken:            retryToken(),
			RequestMetadata:          c.metadata(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	pr := fromPullRequest(resp.PullRequest)
	return &pr, nil
}

func fromSummary(s devops.PullRequestSummary) model.PullRequest {
	pr := model.PullRequest{
		ID:           deref(s.Id),
		Title:        deref(s.DisplayName),
		Status:       lifecycleStatus(string(s.LifecycleDetails), string(s.LifecycleState)),
		RepositoryID: deref(s.RepositoryId),
		SourceBranch: deref(s.SourceBranch),
		TargetBranch: deref(s.DestinationBranch),
		CreatedAt:    sdkTime(s.TimeCreated),
	}
	if s.CreatedBy != nil {
		pr.Author = principalName(s.CreatedBy)
	}
	return pr
}

func fromPullRequest(p devops.PullRequest) model.PullRequest {
	pr := model.PullRequest{
		ID:           deref(p.Id),
		Title:        deref(p.DisplayName),
		Description:  deref(p.Description),
		Status:       lifecycleStatus(string(p.LifecycleDetails), string(p.LifecycleState)),
		RepositoryID: deref(p.RepositoryId),
		SourceBranch: deref(p.SourceBranch),
		TargetBranch: deref(p.DestinationBranch),
		CreatedAt:    sdkTime(p.TimeCreated),
		UpdatedAt:    sdkTime(p.TimeUpdated),
	}
	if p.CreatedBy != nil {
		pr.Author = principalName(p.CreatedBy)
	}
	for _, r := range p.Reviewers {
		pr.Reviewers = append(pr.Reviewers, model.Reviewer{
			PrincipalID:   deref(r.PrincipalId),
			PrincipalName: deref(r.PrincipalName),
			Status:        string(r.Status),
		})
	}
	return pr
}

// lifecycleStatus prefers the detailed state (OPEN, MERGED, CLOSED, ...) and
// falls back to the coarse lifecycle state.
func lifecycleStatus(details, state string) string {
	if details != "" {
		return details
	}
	if state != "" {
		return state
	}
	return model.StatusOpen
}

func principalName(p *devops.PrincipalDetails) string {
	if name := deref(p.PrincipalName); name != "" {
		return name
	}
	return deref(p.PrincipalId)
}

func sdkTime(t *common.SDKTime) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
