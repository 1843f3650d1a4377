package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/thinktide/tasks/internal/apperr"
)

// FileName is the name looked up in the working directory and ~/.tasks.
const FileName = "config.ini"

// DefaultProfile is the OCI CLI profile used when none is configured.
const DefaultProfile = "DEFAULT"

// File is the parsed content of config.ini.
//
// Keys are case-insensitive, so repository aliases are stored lower-cased.
type File struct {
	Path          string
	Profile       string
	OCIConfigFile string
	Endpoint      string
	Retry         string
	PrincipalID   string
	Repos         map[string]string
	DatabasePath  string
	LogFile       string
	LogLevel      string
}

// Load reads config.ini from path, or from the first existing default
// location when path is empty. A missing file yields the defaults.
//
// Any TASKS_<SECTION>_<KEY> environment variable overrides the file.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigType("ini")
	v.SetEnvPrefix("TASKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := dataDir()
	v.SetDefault("devops.retry", "default")
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.file", filepath.Join(dataDir, "app.log"))

	explicit := path != "" || os.Getenv("TASKS_CONFIG") != ""
	resolved := resolvePath(path)
	if resolved != "" {
		if _, err := os.Stat(resolved); err == nil {
			v.SetConfigFile(resolved)
			if err := v.ReadInConfig(); err != nil {
				return nil, apperr.NewConfigurationError(
					fmt.Sprintf("Could not parse %s", resolved),
					"Check that the file is valid INI with [oci], [devops] and [repos] sections.",
					err)
			}
		} else if explicit {
			return nil, apperr.NewConfigurationError(
				fmt.Sprintf("Configuration file %s does not exist", resolved),
				"Create it or point --config at an existing file.",
				err)
		} else {
			resolved = ""
		}
	}

	f := &File{
		Path:          resolved,
		Profile:       v.GetString("oci.profile_name"),
		OCIConfigFile: expandHome(v.GetString("oci.config_file")),
		Endpoint:      v.GetString("devops.endpoint"),
		Retry:         v.GetString("devops.retry"),
		PrincipalID:   v.GetString("devops.principal_id"),
		Repos:         v.GetStringMapString("repos"),
		DatabasePath:  expandHome(v.GetString("database.path")),
		LogFile:       expandHome(v.GetString("log.file")),
		LogLevel:      v.GetString("log.level"),
	}
	if f.Profile == "" {
		f.Profile = os.Getenv("OCI_CLI_PROFILE")
	}
	if f.Profile == "" {
		f.Profile = DefaultProfile
	}
	if f.Repos == nil {
		f.Repos = map[string]string{}
	}
	return f, nil
}

// RepoNames returns the configured repository aliases in sorted order.
func (f *File) RepoNames() []string {
	names := make([]string, 0, len(f.Repos))
	for name := range f.Repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resolvePath(path string) string {
	if path != "" {
		return expandHome(path)
	}
	if env := os.Getenv("TASKS_CONFIG"); env != "" {
		return expandHome(env)
	}
	candidates := []string{FileName, filepath.Join(dataDir(), FileName)}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		} else if !errors.Is(err, os.ErrNotExist) {
			return c
		}
	}
	return ""
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasks"
	}
	return filepath.Join(home, ".tasks")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ExpandHome resolves a leading ~ in path to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}
