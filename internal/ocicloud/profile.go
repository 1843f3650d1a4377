package ocicloud

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/thinktide/tasks/internal/apperr"
	"github.com/thinktide/tasks/internal/config"
)

// AuthType describes how requests for a profile are signed.
type AuthType string

const (
	AuthAPIKey       AuthType = "api_key"
	AuthSessionToken AuthType = "security_token"
)

// Profile is one section of the OCI CLI configuration file.
type Profile struct {
	Name              string
	ConfigFile        string
	User              string
	Tenancy           string
	Region            string
	Fingerprint       string
	KeyFile           string
	SecurityTokenFile string
}

// AuthType returns [AuthAPIKey] for profiles carrying a user OCID and
// [AuthSessionToken] otherwise.
func (p *Profile) AuthType() AuthType {
	if p.User != "" {
		return AuthAPIKey
	}
	return AuthSessionToken
}

// DefaultConfigFile returns ~/.oci/config, honoring OCI_CLI_CONFIG_FILE.
func DefaultConfigFile() string {
	if env := os.Getenv("OCI_CLI_CONFIG_FILE"); env != "" {
		return config.ExpandHome(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".oci", "config")
	}
	return filepath.Join(home, ".oci", "config")
}

// LoadProfile reads the named profile from the OCI configuration file.
// Keys missing from the profile are taken from the DEFAULT section.
func LoadProfile(configFile, name string) (*Profile, error) {
	if configFile == "" {
		configFile = DefaultConfigFile()
	}
	if name == "" {
		name = config.DefaultProfile
	}

	v := viper.New()
	v.SetConfigType("ini")
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, apperr.NewConfigurationError(
			fmt.Sprintf("Could not read OCI config file %s", configFile),
			"Run 'oci setup config' or 'oci session authenticate' to create it.",
			err)
	}

	section := strings.ToLower(name)
	if section != strings.ToLower(config.DefaultProfile) && !v.IsSet(section) {
		return nil, apperr.NewConfigurationError(
			fmt.Sprintf("Profile %s not found in %s", name, configFile),
			fmt.Sprintf("Run 'oci session authenticate --profile-name %s' or set oci.profile_name in config.ini.", name),
			nil)
	}

	get := func(key string) string {
		if value := v.GetString(section + "." + key); value != "" {
			return value
		}
		if value := v.GetString("default." + key); value != "" {
			return value
		}
		return v.GetString(key)
	}

	return &Profile{
		Name:              name,
		ConfigFile:        configFile,
		User:              get("user"),
		Tenancy:           get("tenancy"),
		Region:            get("region"),
		Fingerprint:       get("fingerprint"),
		KeyFile:           config.ExpandHome(get("key_file")),
		SecurityTokenFile: config.ExpandHome(get("security_token_file")),
	}, nil
}
