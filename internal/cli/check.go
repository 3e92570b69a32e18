package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/executor"
	"github.com/streamops/sentinel/internal/probe"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every configured service once and exit",
	Long: `check runs a single probe pass directly against the configured
services, without a running monitor. Exits non-zero if any service is
unhealthy. Useful for smoke-testing a config before 'sentinel start'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		configDir := filepath.Dir(configPath)
		defs, err := cfg.ToDefinitions(configDir)
		if err != nil {
			return fmt.Errorf("resolving services: %w", err)
		}

		probers, err := probe.ForDefinitions(defs, executor.NewShellExecutor())
		if err != nil {
			return fmt.Errorf("building probes: %w", err)
		}

		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROBE\tTARGET\tRESULT\tDETAIL")
		fmt.Fprintln(w, "----\t-----\t------\t------\t------")

		unhealthy := 0
		for _, def := range defs {
			result := probers[def.Name].Check(ctx, def)
			status := "healthy"
			if !result.Healthy {
				status = "unhealthy"
				unhealthy++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				def.Name, def.Probe, def.Target, status, result.Reason)
		}
		w.Flush()

		if unhealthy > 0 {
			return fmt.Errorf("%d of %d services unhealthy", unhealthy, len(defs))
		}
		fmt.Printf("\nAll %d services healthy\n", len(defs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
