// Package command provides CLI command definitions for clustercomm-cli.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration management",
		Subcommands: []*cli.Command{
			{
				Name:  "cli",
				Usage: "CLI local configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show CLI configuration",
						Action: configCLIShow,
					},
					{
						Name:   "validate",
						Usage:  "Validate CLI configuration",
						Action: configCLIValidate,
					},
				},
			},
		},
	}
}

func configCLIShow(c *cli.Context) error {
	// Show CLI configuration file path and contents
	fmt.Printf("CLI Configuration\n")
	fmt.Printf("=================\n\n")

	// Default config path
	homeDir, _ := os.UserHomeDir()
	configPath := homeDir + "/.config/clustercomm-cli/cli.yaml"

	fmt.Printf("Config file: %s\n\n", configPath)

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("(No configuration file found)\n")
		fmt.Printf("\nDefault settings:\n")
		fmt.Printf("  Server:   localhost:5443\n")
		fmt.Printf("  Output:   table\n")
		fmt.Printf("  Timeout:  30s\n")
		return nil
	}

	// Read and display
	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fmt.Printf("%s\n", string(content))
	return nil
}

func configCLIValidate(c *cli.Context) error {
	homeDir, _ := os.UserHomeDir()
	configPath := homeDir + "/.config/clustercomm-cli/cli.yaml"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("No configuration file found at %s\n", configPath)
		fmt.Printf("Using default settings.\n")
		return nil
	}

	// Basic validation - just check if file is readable
	_, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("cannot read config: %w", err)
	}

	fmt.Printf("✓ Configuration file is valid: %s\n", configPath)
	return nil
}
