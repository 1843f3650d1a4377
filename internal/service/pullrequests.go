package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thinktide/tasks/internal/apperr"
	"github.com/thinktide/tasks/internal/model"
)

const (
	mergeStrategy   = "FAST_FORWARD_ONLY"
	postMergeAction = "DELETE_SOURCE_BRANCH"
	reviewApprove   = "APPROVE"

	defaultDiffWorkers = 4
	defaultDiffRate    = 10
)

// DevOpsAPI is the DevOps surface the pull request service depends on.
// It is implemented by [ocicloud.DevOpsClient].
type DevOpsAPI interface {
	ListPullRequests(ctx context.Context, repositoryID string, filter model.PullRequestFilter) ([]model.PullRequest, error)
	GetPullRequest(ctx context.Context, id string) (*model.PullRequest, error)
	GetCommitDiff(ctx context.Context, repositoryID, baseVersion, targetVersion string) (*model.Diff, error)
	MergePullRequest(ctx context.Context, id string, details model.MergeDetails) error
	ReviewPullRequest(ctx context.Context, id, action string) error
	UpdateReviewers(ctx context.Context, id string, principalIDs []string) error
	GetRepository(ctx context.Context, id string) (*model.Repository, error)
	CreatePullRequest(ctx context.Context, in model.NewPullRequest) (*model.PullRequest, error)
}

// Options configure a [PullRequestService].
type Options struct {
	// Repos maps lower-case repository aliases to repository OCIDs.
	Repos map[string]string
	// PrincipalID is the OCID of the user approving pull requests.
	PrincipalID string
	// Store records activity and tracked pull requests. Nil disables recording.
	Store Recorder
	// DiffWorkers bounds the concurrent diff requests of ListPullRequests.
	DiffWorkers int
	// DiffRate is the number of diff requests allowed per second.
	DiffRate float64
	Logger   *zap.Logger
}

// PullRequestService implements the pull request operations of the CLI.
type PullRequestService struct {
	api         DevOpsAPI
	repos       map[string]string
	principalID string
	store       Recorder
	workers     int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewPullRequestService returns a service resolving aliases through opts.Repos.
// Zero values in opts select the defaults.
func NewPullRequestService(api DevOpsAPI, opts Options) *PullRequestService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = nopRecorder{}
	}
	if opts.DiffWorkers <= 0 {
		opts.DiffWorkers = defaultDiffWorkers
	}
	if opts.DiffRate <= 0 {
		opts.DiffRate = defaultDiffRate
	}

	repos := make(map[string]string, len(opts.Repos))
	for alias, ocid := range opts.Repos {
		repos[strings.ToLower(alias)] = ocid
	}

	return &PullRequestService{
		api:         api,
		repos:       repos,
		principalID: opts.PrincipalID,
		store:       opts.Store,
		workers:     opts.DiffWorkers,
		limiter:     rate.NewLimiter(rate.Limit(opts.DiffRate), opts.DiffWorkers),
		logger:      opts.Logger,
	}
}

func (s *PullRequestService) resolve(repo string) (string, error) {
	ocid, ok := s.repos[strings.ToLower(repo)]
	if !ok {
		return "", apperr.NewConfigurationError(
			fmt.Sprintf("Repository '%s' not found in configuration.", repo),
			fmt.Sprintf("Add '%s = <repository OCID>' under [repos] in config.ini.", strings.ToLower(repo)),
			apperr.ErrRepositoryNotFound)
	}
	return ocid, nil
}

// GetPullRequests returns the pull requests of the repository with alias repo.
func (s *PullRequestService) GetPullRequests(ctx context.Context, repo string, filter model.PullRequestFilter) ([]model.PullRequest, error) {
	repoID, err := s.resolve(repo)
	if err != nil {
		return nil, err
	}

	prs, err := s.api.ListPullRequests(ctx, repoID, filter)
	if err != nil {
		return nil, err
	}
	for i := range prs {
		prs[i].RepositoryName = repo
		if prs[i].RepositoryID == "" {
			prs[i].RepositoryID = repoID
		}
	}
	return prs, nil
}

// GetPullRequest returns the pull request with OCID id.
func (s *PullRequestService) GetPullRequest(ctx context.Context, id string) (*model.PullRequest, error) {
	pr, err := s.api.GetPullRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.RepositoryName == "" {
		pr.RepositoryName = s.aliasOf(pr.RepositoryID)
	}
	return pr, nil
}

func (s *PullRequestService) aliasOf(repositoryID string) string {
	for alias, ocid := range s.repos {
		if ocid == repositoryID {
			return alias
		}
	}
	return ""
}

// GetPullRequestDiff returns the changes pr introduces into its target branch.
// A summary is always present in the result.
func (s *PullRequestService) GetPullRequestDiff(ctx context.Context, pr *model.PullRequest) (*model.Diff, error) {
	diff, err := s.api.GetCommitDiff(ctx, pr.RepositoryID, pr.TargetBranch, pr.SourceBranch)
	if err != nil {
		return nil, err
	}
	if diff.Summary == nil {
		summary := diff.Summarize()
		diff.Summary = &summary
	}
	return diff, nil
}

// ListPullRequests collects the pull requests of every repository in repos
// and fills in their diff statistics.
//
// Aliases missing from the configuration are skipped. The result keeps the
// order of repos and of each repository's listing.
func (s *PullRequestService) ListPullRequests(ctx context.Context, repos []string, filter model.PullRequestFilter) ([]model.PullRequest, error) {
	var all []model.PullRequest
	for _, repo := range repos {
		if _, ok := s.repos[strings.ToLower(repo)]; !ok {
			s.logger.Info(fmt.Sprintf("Repository %s not found in config.ini", repo))
			continue
		}
		prs, err := s.GetPullRequests(ctx, repo, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, prs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range all {
		pr := &all[i]
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			diff, err := s.GetPullRequestDiff(gctx, pr)
			if err != nil {
				return err
			}
			pr.UpdateDiffStats(*diff)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("listed pull requests", zap.Int("count", len(all)), zap.Strings("repos", repos))
	return all, nil
}

// Merge fast-forwards the target branch of pull request id and deletes the source branch.
func (s *PullRequestService) Merge(ctx context.Context, id string) (*model.PullRequest, error) {
	var merged *model.PullRequest
	err := s.record("merge_pull_request", id, func() error {
		pr, err := s.GetPullRequest(ctx, id)
		if err != nil {
			return err
		}

		err = s.api.MergePullRequest(ctx, id, model.MergeDetails{
			MergeStrategy:   mergeStrategy,
			CommitMessage:   fmt.Sprintf("Merge pull request from %s to %s", pr.SourceBranch, pr.TargetBranch),
			PostMergeAction: postMergeAction,
		})
		if err != nil {
			return err
		}
		merged = pr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.track(merged, model.TrackedMerged, "")
	return merged, nil
}

// Approve adds the configured principal as a reviewer of pull request id and approves it.
func (s *PullRequestService) Approve(ctx context.Context, id string) (*model.PullRequest, error) {
	if s.principalID == "" {
		return nil, noPrincipal()
	}

	var approved *model.PullRequest
	err := s.record("approve_pull_request", id, func() error {
		pr, err := s.GetPullRequest(ctx, id)
		if err != nil {
			return err
		}

		if !pr.HasReviewer(s.principalID) {
			reviewers := make([]string, 0, len(pr.Reviewers)+1)
			for _, r := range pr.Reviewers {
				reviewers = append(reviewers, r.PrincipalID)
			}
			reviewers = append(reviewers, s.principalID)
			if err := s.api.UpdateReviewers(ctx, id, reviewers); err != nil {
				return err
			}
		}

		if err := s.api.ReviewPullRequest(ctx, id, reviewApprove); err != nil {
			return err
		}
		approved = pr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.track(approved, model.TrackedApproved, "")
	return approved, nil
}

// IsReviewer reports whether the configured principal reviews pull request id.
func (s *PullRequestService) IsReviewer(ctx context.Context, id string) (bool, error) {
	if s.principalID == "" {
		return false, noPrincipal()
	}
	pr, err := s.GetPullRequest(ctx, id)
	if err != nil {
		return false, err
	}
	return pr.HasReviewer(s.principalID), nil
}

// GetRepository returns the metadata of the repository with alias repo.
// The default branch is remembered locally when the repository is known to the store.
func (s *PullRequestService) GetRepository(ctx context.Context, repo string) (*model.Repository, error) {
	repoID, err := s.resolve(repo)
	if err != nil {
		return nil, err
	}

	remote, err := s.api.GetRepository(ctx, repoID)
	if err != nil {
		return nil, err
	}

	local, err := s.store.GetRepositoryByOCID(repoID)
	if err != nil {
		s.logger.Warn("could not read local repository", zap.String("repository", repo), zap.Error(err))
		return remote, nil
	}
	if local != nil && remote.DefaultBranch != "" && local.DefaultBranch != remote.DefaultBranch {
		if err := s.store.SetDefaultBranch(local.ID, remote.DefaultBranch); err != nil {
			s.logger.Warn("could not store default branch", zap.String("repository", repo), zap.Error(err))
		}
	}
	return remote, nil
}

// CreateRequest describes a pull request to open from the command line.
type CreateRequest struct {
	Repository        string
	Title             string
	Description       string
	SourceBranch      string
	DestinationBranch string
	MarkdownFile      string
}

// CreatePullRequest opens a pull request in the repository with alias req.Repository.
// An empty destination branch means the repository's default branch.
func (s *PullRequestService) CreatePullRequest(ctx context.Context, req CreateRequest) (*model.PullRequest, error) {
	repoID, err := s.resolve(req.Repository)
	if err != nil {
		return nil, err
	}

	destination := req.DestinationBranch
	if destination == "" {
		repo, err := s.GetRepository(ctx, req.Repository)
		if err != nil {
			return nil, err
		}
		if repo.DefaultBranch == "" {
			return nil, apperr.NewUserError(
				fmt.Sprintf("Repository '%s' has no default branch", req.Repository),
				"Pass --destination with the branch to merge into.",
				nil)
		}
		destination = repo.DefaultBranch
	}

	var created *model.PullRequest
	err = s.record("create_pull_request", "", func() error {
		pr, err := s.api.CreatePullRequest(ctx, model.NewPullRequest{
			Repository:        req.Repository,
			RepositoryID:      repoID,
			Title:             req.Title,
			Description:       req.Description,
			SourceBranch:      req.SourceBranch,
			DestinationBranch: destination,
			MarkdownFile:      req.MarkdownFile,
		})
		if err != nil {
			return err
		}
		created = pr
		return nil
	})
	if err != nil {
		return nil, err
	}

	created.RepositoryName = req.Repository
	if created.RepositoryID == "" {
		created.RepositoryID = repoID
	}
	s.track(created, model.TrackedCreated, req.MarkdownFile)
	return created, nil
}

// record brackets fn with an activity row. Store failures are logged and do
// not fail the operation.
func (s *PullRequestService) record(operation, pullRequestID string, fn func() error) error {
	activityID, err := s.store.StartActivity(operation, pullRequestID)
	if err != nil {
		s.logger.Warn("could not record activity", zap.String("operation", operation), zap.Error(err))
	}

	opErr := fn()

	if activityID != "" {
		status, result := model.ActivitySucceeded, ""
		if opErr != nil {
			status, result = model.ActivityFailed, opErr.Error()
		}
		if err := s.store.FinishActivity(activityID, status, result); err != nil {
			s.logger.Warn("could not finish activity", zap.String("operation", operation), zap.Error(err))
		}
	}
	return opErr
}

// track stores the local record of pr with status. Pull requests of
// repositories unknown to the store are not tracked.
func (s *PullRequestService) track(pr *model.PullRequest, status model.TrackedStatus, markdownFile string) {
	repo, err := s.store.GetRepositoryByOCID(pr.RepositoryID)
	if err != nil {
		s.logger.Warn("could not read local repository", zap.String("repository_id", pr.RepositoryID), zap.Error(err))
		return
	}
	if repo == nil {
		s.logger.Debug("repository not tracked locally", zap.String("repository_id", pr.RepositoryID))
		return
	}

	err = s.store.TrackPullRequest(&model.TrackedPullRequest{
		OCIID:        pr.ID,
		RepositoryID: repo.ID,
		Title:        pr.Title,
		Description:  pr.Description,
		SourceBranch: pr.SourceBranch,
		TargetBranch: pr.TargetBranch,
		Status:       status,
		MarkdownFile: markdownFile,
	})
	if err != nil {
		s.logger.Warn("could not track pull request", zap.String("pull_request_id", pr.ID), zap.Error(err))
	}
}

func noPrincipal() error {
	return apperr.NewConfigurationError(
		"No principal configured for reviews",
		"Set principal_id under [devops] in config.ini to your user OCID.",
		apperr.ErrNoPrincipal)
}
