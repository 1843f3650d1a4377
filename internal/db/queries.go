package db

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/thinktide/tasks/internal/model"
)

// Repository operations

const repositoryColumns = "id, name, ocid, COALESCE(description, ''), COALESCE(default_branch, ''), created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (*model.Repository, error) {
	var r model.Repository
	var updatedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.Name, &r.OCID, &r.Description, &r.DefaultBranch, &r.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		r.UpdatedAt = &updatedAt.Time
	}
	return &r, nil
}

// UpsertRepository stores the alias name for the repository ocid, creating the row if needed.
//
// If a repository with the same name already exists its OCID and description are replaced and updated_at is set.
// Otherwise a new row is inserted with a ULID identifier and the current timestamp.
//
//   - name: The short alias used on the command line.
//   - ocid: The OCID of the DevOps code repository.
//   - description: Optional free-form text.
//
// Returns the stored [model.Repository], or an error if a database operation fails (including a duplicate OCID).
func UpsertRepository(name, ocid, description string) (*model.Repository, error) {
	existing, err := GetRepositoryByName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing != nil {
		_, err = DB.Exec("UPDATE repositories SET ocid = ?, description = ?, updated_at = ? WHERE id = ?",
			ocid, description, now, existing.ID)
		if err != nil {
			return nil, err
		}
		existing.OCID = ocid
		existing.Description = description
		existing.UpdatedAt = &now
		return existing, nil
	}

	id := model.NewULID()
	_, err = DB.Exec("INSERT INTO repositories (id, name, ocid, description, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, ocid, description, now)
	if err != nil {
		return nil, err
	}

	return &model.Repository{
		ID:          id,
		Name:        name,
		OCID:        ocid,
		Description: description,
		CreatedAt:   now,
	}, nil
}

// GetRepositoryByName retrieves a repository by its alias.
//
// If no repository is found, it returns nil without an error.
func GetRepositoryByName(name string) (*model.Repository, error) {
	r, err := scanRepository(DB.QueryRow("SELECT "+repositoryColumns+" FROM repositories WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetRepositoryByID retrieves a repository by its local identifier.
//
// If no repository is found, it returns nil without an error.
func GetRepositoryByID(id string) (*model.Repository, error) {
	r, err := scanRepository(DB.QueryRow("SELECT "+repositoryColumns+" FROM repositories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetRepositoryByOCID retrieves a repository by its OCID.
//
// If no repository is found, it returns nil without an error.
func GetRepositoryByOCID(ocid string) (*model.Repository, error) {
	r, err := scanRepository(DB.QueryRow("SELECT "+repositoryColumns+" FROM repositories WHERE ocid = ?", ocid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRepositories returns every known repository ordered by name.
func ListRepositories() ([]model.Repository, error) {
	return listRepositories(DB)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func listRepositories(q querier) ([]model.Repository, error) {
	rows, err := q.Query("SELECT " + repositoryColumns + " FROM repositories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, *r)
	}
	return repos, rows.Err()
}

// SetDefaultBranch caches the default branch reported by the DevOps service.
func SetDefaultBranch(id, branch string) error {
	_, err := DB.Exec("UPDATE repositories SET default_branch = ?, updated_at = ? WHERE id = ?", branch, time.Now(), id)
	return err
}

// DeleteRepository removes the repository with the given alias together with its tracked pull requests.
//
// The deletion runs in a single transaction. Activity rows are kept as history.
//
// Returns true if a repository was removed, false if the alias was unknown.
func DeleteRepository(name string) (bool, error) {
	repo, err := GetRepositoryByName(name)
	if err != nil || repo == nil {
		return false, err
	}

	tx, err := DB.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM pull_requests WHERE repository_id = ?", repo.ID); err != nil {
		return false, err
	}
	if _, err := tx.Exec("DELETE FROM repositories WHERE id = ?", repo.ID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// SyncRepositories reconciles the repositories table with the alias to OCID mapping from config.ini.
//
// A row is matched by OCID first, then by alias. Matching by OCID keeps tracked pull requests attached when an
// alias is renamed or two aliases swap repositories. Unmatched aliases are inserted. A row that only exists in the
// database is left alone so that repositories added with `repos add` survive, unless its alias is now taken by
// config.ini, in which case it is renamed to its OCID.
//
// All changes run in a single transaction. Returns the number of inserted and updated rows.
func SyncRepositories(mapping map[string]string) (added, updated int, err error) {
	tx, err := DB.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	existing, err := listRepositories(tx)
	if err != nil {
		return 0, 0, err
	}
	byName := make(map[string]*model.Repository, len(existing))
	byOCID := make(map[string]*model.Repository, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
		byOCID[existing[i].OCID] = &existing[i]
	}

	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	claimed := make(map[string]*model.Repository, len(names))
	taken := make(map[string]bool, len(names))
	for _, name := range names {
		if r := byOCID[mapping[name]]; r != nil {
			claimed[name] = r
			taken[r.ID] = true
		}
	}
	for _, name := range names {
		if claimed[name] != nil {
			continue
		}
		if r := byName[name]; r != nil && !taken[r.ID] {
			claimed[name] = r
			taken[r.ID] = true
		}
	}

	var changed, displaced []*model.Repository
	for _, name := range names {
		if r := claimed[name]; r != nil && (r.Name != name || r.OCID != mapping[name]) {
			changed = append(changed, r)
		}
		if r := byName[name]; r != nil && !taken[r.ID] {
			displaced = append(displaced, r)
		}
	}

	// Park the rows being changed on their IDs so that renames never collide mid-way.
	for _, r := range append(changed, displaced...) {
		if _, err := tx.Exec("UPDATE repositories SET name = ?, ocid = ? WHERE id = ?", r.ID, r.ID, r.ID); err != nil {
			return 0, 0, err
		}
	}

	now := time.Now()
	for _, r := range displaced {
		if _, err := tx.Exec("UPDATE repositories SET name = ?, ocid = ?, updated_at = ? WHERE id = ?",
			r.OCID, r.OCID, now, r.ID); err != nil {
			return 0, 0, err
		}
		updated++
	}
	for _, name := range names {
		r := claimed[name]
		if r == nil {
			_, err := tx.Exec("INSERT INTO repositories (id, name, ocid, created_at) VALUES (?, ?, ?, ?)",
				model.NewULID(), name, mapping[name], now)
			if err != nil {
				return 0, 0, err
			}
			added++
			continue
		}
		if r.Name == name && r.OCID == mapping[name] {
			continue
		}
		if _, err := tx.Exec("UPDATE repositories SET name = ?, ocid = ?, updated_at = ? WHERE id = ?",
			name, mapping[name], now, r.ID); err != nil {
			return 0, 0, err
		}
		updated++
	}

	return added, updated, tx.Commit()
}

// Pull request tracking

const trackedColumns = `id, COALESCE(oci_id, ''), repository_id, title, COALESCE(description, ''), source_branch,
		target_branch, status, COALESCE(markdown_file, ''), created_at, updated_at`

func scanTracked(row rowScanner) (*model.TrackedPullRequest, error) {
	var p model.TrackedPullRequest
	var updatedAt sql.NullTime
	err := row.Scan(&p.ID, &p.OCIID, &p.RepositoryID, &p.Title, &p.Description, &p.SourceBranch,
		&p.TargetBranch, &p.Status, &p.MarkdownFile, &p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}

// TrackPullRequest inserts a local record for a pull request the tool acted on.
//
// If p.ID is empty a ULID is assigned, and a zero CreatedAt is set to now. When a record with the same OCI id
// already exists its status is updated instead so that repeated approvals or merges do not duplicate rows.
func TrackPullRequest(p *model.TrackedPullRequest) error {
	if p.OCIID != "" {
		existing, err := GetTrackedPullRequest(p.OCIID)
		if err != nil {
			return err
		}
		if existing != nil {
			p.ID = existing.ID
			_, err = UpdateTrackedStatus(p.OCIID, p.Status)
			return err
		}
	}

	if p.ID == "" {
		p.ID = model.NewULID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = model.TrackedCreated
	}

	_, err := DB.Exec(`
		INSERT INTO pull_requests (id, oci_id, repository_id, title, description, source_branch, target_branch,
			status, markdown_file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nullString(p.OCIID), p.RepositoryID, p.Title, p.Description, p.SourceBranch, p.TargetBranch,
		p.Status, nullString(p.MarkdownFile), p.CreatedAt)
	return err
}

// GetTrackedPullRequest retrieves the local record for the pull request with the given OCI id.
//
// If no record exists, it returns nil without an error.
func GetTrackedPullRequest(ociID string) (*model.TrackedPullRequest, error) {
	p, err := scanTracked(DB.QueryRow("SELECT "+trackedColumns+" FROM pull_requests WHERE oci_id = ?", ociID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// UpdateTrackedStatus sets the status of the tracked pull request with the given OCI id.
//
// Returns false if no record matched.
func UpdateTrackedStatus(ociID string, status model.TrackedStatus) (bool, error) {
	res, err := DB.Exec("UPDATE pull_requests SET status = ?, updated_at = ? WHERE oci_id = ?", status, time.Now(), ociID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListTrackedOptions represents the parameters available for filtering tracked pull requests.
//
// - Limit defines the maximum count of records to return; 0 returns all.
// - RepositoryID restricts records to one repository.
// - Status restricts records to one [model.TrackedStatus].
// - From restricts records to those created on or after the specified time.
// - To restricts records to those created before the specified time.
type ListTrackedOptions struct {
	Limit        int
	RepositoryID *string
	Status       *model.TrackedStatus
	From         *time.Time
	To           *time.Time
}

// ListTrackedPullRequests retrieves tracked pull requests matching opts, newest first.
//
// Each record is populated with its [model.Repository].
func ListTrackedPullRequests(opts ListTrackedOptions) ([]model.TrackedPullRequest, error) {
	query := "SELECT " + trackedColumns + " FROM pull_requests WHERE 1=1"
	args := []any{}

	if opts.RepositoryID != nil {
		query += " AND repository_id = ?"
		args = append(args, *opts.RepositoryID)
	}
	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, *opts.Status)
	}
	if opts.From != nil {
		query += " AND created_at >= ?"
		args = append(args, *opts.From)
	}
	if opts.To != nil {
		query += " AND created_at < ?"
		args = append(args, *opts.To)
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var tracked []model.TrackedPullRequest
	for rows.Next() {
		p, err := scanTracked(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tracked = append(tracked, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Repositories are loaded after the cursor is closed; the pool has a single connection.
	for i := range tracked {
		repo, err := GetRepositoryByID(tracked[i].RepositoryID)
		if err != nil {
			return nil, err
		}
		tracked[i].Repository = repo
	}

	return tracked, nil
}

// Activity operations

// StartActivity records the start of a mutating operation with a PENDING status.
//
// Returns the identifier to pass to [FinishActivity].
func StartActivity(operation, pullRequestID string) (string, error) {
	id := model.NewULID()
	_, err := DB.Exec(
		"INSERT INTO activity (id, operation, status, pull_request_id, created_at) VALUES (?, ?, ?, ?, ?)",
		id, operation, model.ActivityPending, nullString(pullRequestID), time.Now())
	return id, err
}

// FinishActivity closes the activity id with its final status and a short result text.
func FinishActivity(id string, status model.ActivityStatus, result string) error {
	_, err := DB.Exec("UPDATE activity SET status = ?, result = ?, updated_at = ? WHERE id = ?",
		status, result, time.Now(), id)
	return err
}

// ListActivity retrieves the most recent activity rows, newest first. A limit of 0 returns all.
func ListActivity(limit int) ([]model.Activity, error) {
	query := `
		SELECT id, operation, status, COALESCE(result, ''), COALESCE(pull_request_id, ''), created_at, updated_at
		FROM activity
		ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activity []model.Activity
	for rows.Next() {
		var a model.Activity
		var updatedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Operation, &a.Status, &a.Result, &a.PullRequestID, &a.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			a.UpdatedAt = &updatedAt.Time
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// Config operations

// GetConfig retrieves the configuration value associated with the given key from the database.
//
// If the key does not exist, an empty string and no error are returned. An error is returned if the query fails.
func GetConfig(key string) (string, error) {
	var value string
	err := DB.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetConfig saves a persistent key-value pair in the configuration storage, replacing any previous value.
func SetConfig(key, value string) error {
	_, err := DB.Exec("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", key, value)
	return err
}

// ListConfig retrieves all stored configuration key-value pairs.
func ListConfig() (map[string]string, error) {
	rows, err := DB.Query("SELECT key, value FROM config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		config[key] = value
	}
	return config, rows.Err()
}
