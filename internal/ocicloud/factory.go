package ocicloud

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/devops"
	"go.uber.org/zap"

	"github.com/thinktide/tasks/internal/apperr"
)

// Options configure a [Factory].
type Options struct {
	Profile    string
	ConfigFile string
	Endpoint   string
	Retry      string
}

// Factory builds OCI clients for one profile. The configuration provider and
// the DevOps client are created once and reused for the life of the process.
type Factory struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	profileOnce sync.Once
	profile     *Profile
	profileErr  error

	devopsOnce sync.Once
	devops     *DevOpsClient
	devopsErr  error
}

// NewFactory returns a factory for opts. Nothing is read until a client is requested.
func NewFactory(opts Options, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{opts: opts, logger: logger, now: time.Now}
}

// Profile loads the configured OCI CLI profile.
func (f *Factory) Profile() (*Profile, error) {
	f.profileOnce.Do(func() {
		f.profile, f.profileErr = LoadProfile(f.opts.ConfigFile, f.opts.Profile)
	})
	return f.profile, f.profileErr
}

// Provider returns the configuration provider used to sign requests.
//
// Session-token profiles are checked for an unexpired token first so that an
// expired session yields a fixable error instead of a 401 from the service.
func (f *Factory) Provider() (common.ConfigurationProvider, error) {
	profile, err := f.Profile()
	if err != nil {
		return nil, err
	}

	if profile.AuthType() == AuthSessionToken {
		token, err := CheckSession(profile, f.now())
		if err != nil {
			return nil, err
		}
		f.logger.Debug("using session token",
			zap.String("profile", profile.Name),
			zap.Time("expires_at", token.ExpiresAt))
	}

	return common.CustomProfileConfigProvider(profile.ConfigFile, profile.Name), nil
}

// DevOps returns the cached DevOps client.
func (f *Factory) DevOps() (*DevOpsClient, error) {
	f.devopsOnce.Do(func() {
		f.devops, f.devopsErr = f.newDevOps()
	})
	return f.devops, f.devopsErr
}

func (f *Factory) newDevOps() (*DevOpsClient, error) {
	provider, err := f.Provider()
	if err != nil {
		return nil, err
	}

	client, err := devops.NewDevopsClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, apperr.NewSystemError("Could not create the DevOps client", err.Error(), err)
	}
	if f.opts.Endpoint != "" {
		client.Host = f.opts.Endpoint
	}

	policy, err := RetryPolicy(f.opts.Retry)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("created devops client",
		zap.String("profile", f.opts.Profile),
		zap.String("endpoint", client.Host),
		zap.String("retry", f.opts.Retry))

	return NewDevOpsClient(client, policy, f.logger), nil
}

// RetryPolicy translates the devops.retry setting into an SDK retry policy.
// Accepted values are "default" (or empty), "none" and a maximum attempt count.
func RetryPolicy(setting string) (*common.RetryPolicy, error) {
	switch s := strings.ToLower(strings.TrimSpace(setting)); s {
	case "", "default", "true":
		policy := common.DefaultRetryPolicy()
		return &policy, nil
	case "none", "false", "0":
		policy := common.NoRetryPolicy()
		return &policy, nil
	default:
		attempts, err := strconv.Atoi(s)
		if err != nil || attempts < 0 {
			return nil, apperr.NewConfigurationError(
				fmt.Sprintf("Invalid devops.retry value %q", setting),
				"Use 'default', 'none' or a number of attempts in config.ini.",
				err)
		}
		policy := common.NewRetryPolicyWithOptions(common.WithMaximumNumberAttempts(uint(attempts)))
		return &policy, nil
	}
}
