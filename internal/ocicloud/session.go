package ocicloud

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thinktide/tasks/internal/apperr"
)

// SessionToken is the decoded state of an OCI CLI session token.
type SessionToken struct {
	Path      string
	ExpiresAt time.Time
}

// Valid reports whether the token is still usable at now.
func (s *SessionToken) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// ReadSessionToken loads and decodes the security token of profile.
//
// The signature is not verified; the token is only inspected for its expiry,
// the same check the OCI CLI performs before using a session.
func ReadSessionToken(profile *Profile) (*SessionToken, error) {
	if profile.SecurityTokenFile == "" {
		return nil, apperr.NewAuthenticationError(
			"Couldn't find security token file",
			fmt.Sprintf("Run 'oci session authenticate --profile-name %s' to create a session.", profile.Name),
			nil)
	}

	raw, err := os.ReadFile(profile.SecurityTokenFile)
	if err != nil {
		return nil, apperr.NewAuthenticationError(
			fmt.Sprintf("Couldn't read security token file %s", profile.SecurityTokenFile),
			fmt.Sprintf("Run 'oci session authenticate --profile-name %s' to create a session.", profile.Name),
			err)
	}

	token, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(string(raw)), jwt.MapClaims{})
	if err != nil {
		return nil, apperr.NewAuthenticationError(
			"Security token is malformed",
			fmt.Sprintf("Run 'oci session authenticate --profile-name %s' to replace it.", profile.Name),
			err)
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, apperr.NewAuthenticationError(
			"Security token has no expiry",
			fmt.Sprintf("Run 'oci session authenticate --profile-name %s' to replace it.", profile.Name),
			err)
	}

	return &SessionToken{Path: profile.SecurityTokenFile, ExpiresAt: exp.Time}, nil
}

// CheckSession validates the session token of profile at now.
func CheckSession(profile *Profile, now time.Time) (*SessionToken, error) {
	token, err := ReadSessionToken(profile)
	if err != nil {
		return nil, err
	}
	if !token.Valid(now) {
		return token, apperr.NewAuthenticationError(
			"Refresh your OCI CLI session",
			fmt.Sprintf("oci session authenticate --profile-name %s\n(or: oci session refresh --profile %s)", profile.Name, profile.Name),
			nil)
	}
	return token, nil
}
