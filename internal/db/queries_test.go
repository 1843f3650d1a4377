package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinktide/tasks/internal/model"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, Init(filepath.Join(t.TempDir(), "tasks.db")))
	t.Cleanup(func() { Close() })
}

func TestUpsertRepository(t *testing.T) {
	setupTestDB(t)

	created, err := UpsertRepository("api", "ocid1.devopsrepository.oc1..aaa", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	updated, err := UpsertRepository("api", "ocid1.devopsrepository.oc1..bbb", "backend")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err := GetRepositoryByName("api")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ocid1.devopsrepository.oc1..bbb", got.OCID)
	assert.Equal(t, "backend", got.Description)
	assert.NotNil(t, got.UpdatedAt)
}

func TestGetRepositoryByName_Missing(t *testing.T) {
	setupTestDB(t)

	got, err := GetRepositoryByName("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyncRepositories(t *testing.T) {
	setupTestDB(t)

	_, err := UpsertRepository("manual", "ocid1.devopsrepository.oc1..manual", "")
	require.NoError(t, err)
	_, err = UpsertRepository("web", "ocid1.devopsrepository.oc1..old", "")
	require.NoError(t, err)

	added, updated, err := SyncRepositories(map[string]string{
		"api": "ocid1.devopsrepository.oc1..api",
		"web": "ocid1.devopsrepository.oc1..new",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, updated)

	repos, err := ListRepositories()
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, "api", repos[0].Name)
	assert.Equal(t, "manual", repos[1].Name)
	assert.Equal(t, "ocid1.devopsrepository.oc1..new", repos[2].OCID)
}

func TestSyncRepositories_RenamedAliasKeepsTracked(t *testing.T) {
	setupTestDB(t)

	_, _, err := SyncRepositories(map[string]string{"api": "ocid1.devopsrepository.oc1..x"})
	require.NoError(t, err)
	api, err := GetRepositoryByName("api")
	require.NoError(t, err)
	require.NoError(t, TrackPullRequest(&model.TrackedPullRequest{
		OCIID:        "ocid1.devopspullrequest.oc1..one",
		RepositoryID: api.ID,
		Title:        "Add endpoint",
		SourceBranch: "feature",
		TargetBranch: "main",
	}))

	added, updated, err := SyncRepositories(map[string]string{"backend": "ocid1.devopsrepository.oc1..x"})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, updated)

	backend, err := GetRepositoryByName("backend")
	require.NoError(t, err)
	require.NotNil(t, backend)
	assert.Equal(t, api.ID, backend.ID)

	gone, err := GetRepositoryByName("api")
	require.NoError(t, err)
	assert.Nil(t, gone)

	tracked, err := ListTrackedPullRequests(ListTrackedOptions{RepositoryID: &backend.ID})
	require.NoError(t, err)
	assert.Len(t, tracked, 1)
}

func TestSyncRepositories_SwappedOCIDs(t *testing.T) {
	setupTestDB(t)

	_, _, err := SyncRepositories(map[string]string{
		"api": "ocid1.devopsrepository.oc1..a",
		"web": "ocid1.devopsrepository.oc1..b",
	})
	require.NoError(t, err)
	before, err := GetRepositoryByOCID("ocid1.devopsrepository.oc1..a")
	require.NoError(t, err)

	added, updated, err := SyncRepositories(map[string]string{
		"api": "ocid1.devopsrepository.oc1..b",
		"web": "ocid1.devopsrepository.oc1..a",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 2, updated)

	web, err := GetRepositoryByName("web")
	require.NoError(t, err)
	require.NotNil(t, web)
	assert.Equal(t, "ocid1.devopsrepository.oc1..a", web.OCID)
	assert.Equal(t, before.ID, web.ID)

	repos, err := ListRepositories()
	require.NoError(t, err)
	assert.Len(t, repos, 2)
}

func TestSyncRepositories_AliasTakenByStoredOCID(t *testing.T) {
	setupTestDB(t)

	_, err := UpsertRepository("old", "ocid1.devopsrepository.oc1..x", "stored first")
	require.NoError(t, err)
	_, err = UpsertRepository("api", "ocid1.devopsrepository.oc1..manual", "")
	require.NoError(t, err)

	_, _, err = SyncRepositories(map[string]string{"api": "ocid1.devopsrepository.oc1..x"})
	require.NoError(t, err)

	api, err := GetRepositoryByName("api")
	require.NoError(t, err)
	require.NotNil(t, api)
	assert.Equal(t, "ocid1.devopsrepository.oc1..x", api.OCID)
	assert.Equal(t, "stored first", api.Description)

	displaced, err := GetRepositoryByOCID("ocid1.devopsrepository.oc1..manual")
	require.NoError(t, err)
	require.NotNil(t, displaced)
	assert.Equal(t, "ocid1.devopsrepository.oc1..manual", displaced.Name)
}

func TestDeleteRepository_RemovesTracked(t *testing.T) {
	setupTestDB(t)

	repo, err := UpsertRepository("api", "ocid1.devopsrepository.oc1..api", "")
	require.NoError(t, err)
	require.NoError(t, TrackPullRequest(&model.TrackedPullRequest{
		OCIID:        "ocid1.devopspullrequest.oc1..one",
		RepositoryID: repo.ID,
		Title:        "Add endpoint",
		SourceBranch: "feature",
		TargetBranch: "main",
	}))

	deleted, err := DeleteRepository("api")
	require.NoError(t, err)
	assert.True(t, deleted)

	tracked, err := ListTrackedPullRequests(ListTrackedOptions{})
	require.NoError(t, err)
	assert.Empty(t, tracked)

	deleted, err = DeleteRepository("api")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTrackPullRequest_UpdatesExisting(t *testing.T) {
	setupTestDB(t)

	repo, err := UpsertRepository("api", "ocid1.devopsrepository.oc1..api", "")
	require.NoError(t, err)

	first := &model.TrackedPullRequest{
		OCIID:        "ocid1.devopspullrequest.oc1..one",
		RepositoryID: repo.ID,
		Title:        "Add endpoint",
		SourceBranch: "feature",
		TargetBranch: "main",
		MarkdownFile: "pr.md",
	}
	require.NoError(t, TrackPullRequest(first))
	assert.Equal(t, model.TrackedCreated, first.Status)

	second := &model.TrackedPullRequest{
		OCIID:        "ocid1.devopspullrequest.oc1..one",
		RepositoryID: repo.ID,
		Title:        "Add endpoint",
		SourceBranch: "feature",
		TargetBranch: "main",
		Status:       model.TrackedMerged,
	}
	require.NoError(t, TrackPullRequest(second))
	assert.Equal(t, first.ID, second.ID)

	got, err := GetTrackedPullRequest("ocid1.devopspullrequest.oc1..one")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.TrackedMerged, got.Status)
	assert.Equal(t, "pr.md", got.MarkdownFile)
}

func TestListTrackedPullRequests_Filters(t *testing.T) {
	setupTestDB(t)

	api, err := UpsertRepository("api", "ocid1.devopsrepository.oc1..api", "")
	require.NoError(t, err)
	web, err := UpsertRepository("web", "ocid1.devopsrepository.oc1..web", "")
	require.NoError(t, err)

	old := time.Now().Add(-72 * time.Hour)
	records := []model.TrackedPullRequest{
		{OCIID: "pr-1", RepositoryID: api.ID, Title: "one", SourceBranch: "a", TargetBranch: "main", CreatedAt: old},
		{OCIID: "pr-2", RepositoryID: api.ID, Title: "two", SourceBranch: "b", TargetBranch: "main", Status: model.TrackedMerged},
		{OCIID: "pr-3", RepositoryID: web.ID, Title: "three", SourceBranch: "c", TargetBranch: "main"},
	}
	for i := range records {
		require.NoError(t, TrackPullRequest(&records[i]))
	}

	byRepo, err := ListTrackedPullRequests(ListTrackedOptions{RepositoryID: &api.ID})
	require.NoError(t, err)
	require.Len(t, byRepo, 2)
	require.NotNil(t, byRepo[0].Repository)
	assert.Equal(t, "api", byRepo[0].Repository.Name)

	merged := model.TrackedMerged
	byStatus, err := ListTrackedPullRequests(ListTrackedOptions{Status: &merged})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "pr-2", byStatus[0].OCIID)

	since := time.Now().Add(-24 * time.Hour)
	recent, err := ListTrackedPullRequests(ListTrackedOptions{From: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := ListTrackedPullRequests(ListTrackedOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestActivityLifecycle(t *testing.T) {
	setupTestDB(t)

	id, err := StartActivity("merge", "pr-1")
	require.NoError(t, err)

	activity, err := ListActivity(10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, model.ActivityPending, activity[0].Status)
	assert.Nil(t, activity[0].UpdatedAt)

	require.NoError(t, FinishActivity(id, model.ActivitySucceeded, "merged"))

	activity, err = ListActivity(0)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, model.ActivitySucceeded, activity[0].Status)
	assert.Equal(t, "merged", activity[0].Result)
	assert.Equal(t, "pr-1", activity[0].PullRequestID)
	assert.NotNil(t, activity[0].UpdatedAt)
}

func TestConfigRoundTrip(t *testing.T) {
	setupTestDB(t)

	value, err := GetConfig("output.format")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, SetConfig("output.format", "json"))
	require.NoError(t, SetConfig("output.format", "yaml"))

	value, err = GetConfig("output.format")
	require.NoError(t, err)
	assert.Equal(t, "yaml", value)

	all, err := ListConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"output.format": "yaml"}, all)
}
