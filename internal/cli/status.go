package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/ocicloud"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the OCI authentication status",
	Long: `Show the OCI CLI profile in use and, for session profiles, how long the
session token remains valid.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	profile, err := app.factory.Profile()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Profile:  %s (%s)\n", profile.Name, profile.ConfigFile)
	fmt.Fprintf(stdout, "  Auth:   %s\n", profile.AuthType())
	if profile.Region != "" {
		fmt.Fprintf(stdout, "  Region: %s\n", profile.Region)
	}
	if app.cfg.Path != "" {
		fmt.Fprintf(stdout, "  Config: %s\n", app.cfg.Path)
	}
	if app.cfg.PrincipalID == "" {
		fmt.Fprintln(stdout, "  Principal: not set (approve and reviewer are unavailable)")
	} else {
		fmt.Fprintf(stdout, "  Principal: %s\n", app.cfg.PrincipalID)
	}

	if profile.AuthType() != ocicloud.AuthSessionToken {
		return nil
	}

	now := time.Now()
	token, err := ocicloud.ReadSessionToken(profile)
	if err != nil {
		return err
	}
	printSession(token, now)
	return nil
}

func printSession(token *ocicloud.SessionToken, now time.Time) {
	if !token.Valid(now) {
		fmt.Fprintf(stdout, "  Session: expired %s ago\n", formatDuration(now.Sub(token.ExpiresAt)))
		return
	}
	fmt.Fprintf(stdout, "  Session: valid for %s (until %s)\n",
		formatDuration(token.ExpiresAt.Sub(now)), token.ExpiresAt.Local().Format("15:04:05"))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
