package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage preferences",
	Long: `Manage tasks preferences stored in the local database.

OCI and repository settings live in config.ini; these are per-user preferences.

Examples:
  tasks config list                        # List all settings
  tasks config get output.format           # Get a specific setting
  tasks config set output.format json      # Set a value

Available settings:
  output.format           - Default output format (table/json/csv/yaml)
  pr.limit                - Default pull requests listed per repository`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration settings",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	settings, err := config.List()
	if err != nil {
		return fmt.Errorf("failed to list config: %w", err)
	}

	table := newTable(stdout, []string{"Key", "Value"})
	for _, key := range config.ValidKeys() {
		table.Append([]string{key, settings[key]})
	}
	table.Render()
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := validateKey(key); err != nil {
		return err
	}

	value, err := config.Get(key)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	fmt.Fprintln(stdout, value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(key, value); err != nil {
		return err
	}

	if err := config.Set(key, value); err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}

	fmt.Fprintf(stdout, "%s = %s\n", key, value)
	return nil
}

func validateKey(key string) error {
	if !config.IsValidKey(key) {
		return fmt.Errorf("unknown config key: %s\nValid keys: %s",
			key, strings.Join(config.ValidKeys(), ", "))
	}
	return nil
}

func validateValue(key, value string) error {
	switch key {
	case config.KeyOutputFormat:
		if !config.IsValidFormat(value) {
			return fmt.Errorf("value must be one of: %s", strings.Join(config.OutputFormats, ", "))
		}
	case config.KeyPRLimit:
		if n, err := strconv.Atoi(value); err != nil || n <= 0 {
			return fmt.Errorf("value must be a positive number")
		}
	}
	return nil
}
