package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"amqprpc/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default bus configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = "rpc.yml"
		}

		if _, err := os.Stat(path); err == nil {
			cmd.Printf("Configuration file already exists: %s\n", path)
			return nil
		}

		if err := config.Save(config.Default(), path); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		cmd.Printf("Configuration file created: %s\n", path)
		return nil
	},
}

// loadBusConfiguration loads configuration from configPath, falling back
// to defaults when no file exists yet.
func loadBusConfiguration() (*config.BusConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
