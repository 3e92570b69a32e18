// Package cli implements the sentinel command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/daemon"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath           string
	apiAddr              string
	apiAddrExplicitlySet bool
	verbose              bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "A self-healing service monitor",
	Long: `sentinel watches a fleet of services, detects failures, and repairs
them without a human in the loop. It supports:
  - Periodic health probing (systemd units, processes, HTTP endpoints)
  - Threshold-based automatic recovery with daily restart budgets
  - Trend analysis and preventive intervention
  - Correlated-failure detection across dependent services
  - A read-only diagnostics API with live event streaming
  - An offline chaos harness for validating recovery behavior`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("addr") {
			apiAddrExplicitlySet = true
		}

		// Client commands talk to a running instance; discover its
		// address unless one was given explicitly
		clientCommands := map[string]bool{
			"status":        true,
			"services":      true,
			"interventions": true,
			"watch":         true,
			"run":           true, // chaos run
		}
		if clientCommands[cmd.Name()] && !apiAddrExplicitlySet {
			apiAddr = discoverAPIAddress()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sentinel version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", constants.DefaultAPIAddress, "API address for remote commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.SetVersionTemplate("sentinel version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process-wide structured logger
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadAPIAddrFromConfig attempts to read the API address from the config file.
// Returns empty string if config doesn't exist or can't be read.
func loadAPIAddrFromConfig() string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ""
	}

	host := cfg.API.Host
	if host == "" {
		host = constants.DefaultAPIHost
	}
	port := cfg.API.Port
	if port == 0 {
		port = constants.DefaultAPIPort
	}

	return fmt.Sprintf("http://%s:%d", host, port)
}

// discoverAPIAddress attempts to discover the API address.
// Priority:
// 1. State file (.sentinel/sentinel.state) - for running instances
// 2. Config file (sentinel.json) - for configured port
// 3. Default address
func discoverAPIAddress() string {
	cwd, err := os.Getwd()
	if err == nil {
		state, err := daemon.LoadState(cwd)
		if err == nil {
			return fmt.Sprintf("http://%s:%d", state.Host, state.Port)
		}
	}

	if addr := loadAPIAddrFromConfig(); addr != "" {
		return addr
	}

	return constants.DefaultAPIAddress
}
