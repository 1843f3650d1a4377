package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinktide/tasks/internal/apperr"
)

const sampleINI = `[oci]
profile_name = WORK

[devops]
endpoint = https://devops.example.oraclecloud.com
retry = none
principal_id = ocid1.user.oc1..me

[repos]
API = ocid1.devopsrepository.oc1..api
web = ocid1.devopsrepository.oc1..web

[database]
path = /tmp/tasks-test.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ReadsSections(t *testing.T) {
	t.Setenv("OCI_CLI_PROFILE", "")
	path := writeConfig(t, sampleINI)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Path)
	assert.Equal(t, "WORK", f.Profile)
	assert.Equal(t, "https://devops.example.oraclecloud.com", f.Endpoint)
	assert.Equal(t, "none", f.Retry)
	assert.Equal(t, "ocid1.user.oc1..me", f.PrincipalID)
	assert.Equal(t, "/tmp/tasks-test.db", f.DatabasePath)
	assert.Equal(t, []string{"api", "web"}, f.RepoNames())
}

func TestLoad_ProfileFallsBackToEnvironment(t *testing.T) {
	t.Setenv("OCI_CLI_PROFILE", "SESSION")
	path := writeConfig(t, "[repos]\napi = ocid1.devopsrepository.oc1..api\n")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SESSION", f.Profile)
	assert.Equal(t, "default", f.Retry)
}

func TestLoad_ProfileDefault(t *testing.T) {
	t.Setenv("OCI_CLI_PROFILE", "")
	path := writeConfig(t, "[repos]\n")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, f.Profile)
	assert.Empty(t, f.RepoNames())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("TASKS_DEVOPS_PRINCIPAL_ID", "ocid1.user.oc1..override")
	path := writeConfig(t, sampleINI)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ocid1.user.oc1..override", f.PrincipalID)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
	assert.True(t, apperr.IsUserError(err))
}
