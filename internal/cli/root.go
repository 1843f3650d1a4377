package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thinktide/tasks/internal/apperr"
	"github.com/thinktide/tasks/internal/config"
	"github.com/thinktide/tasks/internal/db"
	"github.com/thinktide/tasks/internal/logging"
	"github.com/thinktide/tasks/internal/ocicloud"
	"github.com/thinktide/tasks/internal/service"
)

var Version = "dev"

var (
	debugFlag   bool
	profileFlag string
	configFlag  string
	formatFlag  string
)

// app holds what PersistentPreRunE prepared for the running command.
var app struct {
	cfg     *config.File
	logger  *zap.Logger
	factory *ocicloud.Factory
	service *service.PullRequestService
}

var rootCmd = &cobra.Command{
	Use:   "tasks",
	Short: "A CLI for OCI DevOps pull requests",
	Long: `Tasks lists, reviews, merges and creates pull requests in OCI DevOps
code repositories, and keeps a local history of what it did.

Repositories are referred to by the aliases configured under [repos] in config.ini.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version command
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		db.Close()
		if app.logger != nil {
			_ = app.logger.Sync()
		}
	},
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logFailure(err)
		fmt.Fprintln(os.Stderr, formatError(err, debugFlag))
		os.Exit(1)
	}
}

// logFailure records errors that are not the user's to fix. PersistentPostRun
// does not run for failed commands, so the logger is flushed here.
func logFailure(err error) {
	if app.logger == nil {
		return
	}
	if !apperr.IsUserError(err) {
		app.logger.Error("command failed", zap.Error(err))
	}
	_ = app.logger.Sync()
	db.Close()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log to stderr at debug level")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "OCI CLI profile (overrides oci.profile_name)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config.ini")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "", "Output format: table, json, csv, yaml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pullRequestsCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(trackedCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tasks %s\n", Version)
	},
}

// setup loads config.ini, starts logging and opens the local database.
// Repositories configured in config.ini are synced into the database.
func setup() error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if profileFlag != "" {
		cfg.Profile = profileFlag
	}
	app.cfg = cfg
	app.logger = logging.NewCLILogger(debugFlag, cfg.LogLevel, cfg.LogFile)
	app.logger.Debug("loaded configuration",
		zap.String("path", cfg.Path),
		zap.String("profile", cfg.Profile),
		zap.Int("repos", len(cfg.Repos)))

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath, err = db.DefaultPath()
		if err != nil {
			return err
		}
	}
	if err := db.Init(dbPath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	added, updated, err := db.SyncRepositories(cfg.Repos)
	if err != nil {
		return fmt.Errorf("failed to sync repositories: %w", err)
	}
	if added > 0 || updated > 0 {
		app.logger.Debug("synced repositories", zap.Int("added", added), zap.Int("updated", updated))
	}

	app.factory = ocicloud.NewFactory(ocicloud.Options{
		Profile:    cfg.Profile,
		ConfigFile: cfg.OCIConfigFile,
		Endpoint:   cfg.Endpoint,
		Retry:      cfg.Retry,
	}, app.logger)
	return nil
}

// pullRequestService builds the service on first use so that local commands
// never need OCI credentials.
func pullRequestService() (*service.PullRequestService, error) {
	if app.service != nil {
		return app.service, nil
	}

	client, err := app.factory.DevOps()
	if err != nil {
		return nil, err
	}

	repos, err := repositoryMapping()
	if err != nil {
		return nil, err
	}

	app.service = service.NewPullRequestService(client, service.Options{
		Repos:       repos,
		PrincipalID: app.cfg.PrincipalID,
		Store:       service.DBRecorder{},
		Logger:      app.logger,
	})
	return app.service, nil
}

// repositoryMapping merges aliases added with 'tasks repos add' with those of
// config.ini. config.ini wins on conflicts.
func repositoryMapping() (map[string]string, error) {
	stored, err := db.ListRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	repos := make(map[string]string, len(stored)+len(app.cfg.Repos))
	for _, r := range stored {
		repos[r.Name] = r.OCID
	}
	for alias, ocid := range app.cfg.Repos {
		repos[alias] = ocid
	}
	return repos, nil
}

// outputFormat returns --format, or the stored output.format preference.
func outputFormat() (string, error) {
	format := formatFlag
	if format == "" {
		stored, err := config.Get(config.KeyOutputFormat)
		if err != nil {
			return "", err
		}
		format = stored
	}
	if !config.IsValidFormat(format) {
		return "", fmt.Errorf("invalid format %q: use one of %v", format, config.OutputFormats)
	}
	return format, nil
}
