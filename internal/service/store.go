package service

import (
	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/model"
)

// Recorder persists what the service did to the local database.
type Recorder interface {
	StartActivity(operation, pullRequestID string) (string, error)
	FinishActivity(id string, status model.ActivityStatus, result string) error
	TrackPullRequest(p *model.TrackedPullRequest) error
	GetRepositoryByOCID(ocid string) (*model.Repository, error)
	SetDefaultBranch(id, branch string) error
}

// DBRecorder is the [Recorder] backed by the db package.
type DBRecorder struct{}

func (DBRecorder) StartActivity(operation, pullRequestID string) (string, error) {
	return db.StartActivity(operation, pullRequestID)
}

func (DBRecorder) FinishActivity(id string, status model.ActivityStatus, result string) error {
	return db.FinishActivity(id, status, result)
}

func (DBRecorder) TrackPullRequest(p *model.TrackedPullRequest) error {
	return db.TrackPullRequest(p)
}

func (DBRecorder) GetRepositoryByOCID(ocid string) (*model.Repository, error) {
	return db.GetRepositoryByOCID(ocid)
}

func (DBRecorder) SetDefaultBranch(id, branch string) error {
	return db.SetDefaultBranch(id, branch)
}

type nopRecorder struct{}

func (nopRecorder) StartActivity(string, string) (string, error) {
	return "", nil
}

func (nopRecorder) FinishActivity(string, model.ActivityStatus, string) error {
	return nil
}

func (nopRecorder) TrackPullRequest(*model.TrackedPullRequest) error {
	return nil
}

func (nopRecorder) GetRepositoryByOCID(string) (*model.Repository, error) {
	return nil, nil
}

func (nopRecorder) SetDefaultBranch(string, string) error {
	return nil
}
