package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamops/sentinel/internal/audit"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor and service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)

		status, err := client.GetStatus()
		if err != nil {
			return fmt.Errorf("%w\nIs sentinel running? Try 'sentinel start' first", err)
		}

		services, err := client.GetServices()
		if err != nil {
			return err
		}

		if statusJSON {
			output := map[string]interface{}{
				"status":   status,
				"services": services.Services,
			}
			return json.NewEncoder(os.Stdout).Encode(output)
		}

		fmt.Printf("Status: %s\n", status.Status)
		fmt.Printf("Uptime: %s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
		fmt.Printf("Config: %s\n", status.ConfigFile)
		if status.MaintenanceMode {
			fmt.Println("Maintenance mode: ON (recovery suppressed)")
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tFAILURES\tRESTARTS TODAY\tRECOVERING\tLAST CHECK")
		fmt.Fprintln(w, "----\t------\t--------\t--------------\t----------\t----------")
		for _, s := range services.Services {
			recovering := ""
			if s.RecoveryInProgress {
				recovering = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				s.Name, s.Status, s.ConsecutiveFailures, s.RestartsToday, recovering, s.LastCheck)
		}
		w.Flush()

		return nil
	},
}

var servicesCmd = &cobra.Command{
	Use:   "services [name]",
	Short: "Show service detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)

		if len(args) == 0 {
			services, err := client.GetServices()
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(services)
		}

		detail, err := client.GetService(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

var (
	interventionsLimit   int
	interventionsService string
)

var interventionsCmd = &cobra.Command{
	Use:   "interventions",
	Short: "Show recent recovery interventions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)

		params := InterventionParams{Limit: interventionsLimit}
		if interventionsService != "" {
			params.Services = []string{interventionsService}
		}
		resp, err := client.GetInterventions(params)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSERVICE\tTRIGGER\tACTION\tRESULT\tDURATION")
		fmt.Fprintln(w, "----\t-------\t-------\t------\t------\t--------")
		for _, iv := range resp.Interventions {
			result := "ok"
			if !iv.Success {
				result = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				iv.Timestamp.Format("15:04:05"), iv.Service, iv.Trigger, iv.Action,
				result, iv.Duration.Round(time.Millisecond))
		}
		w.Flush()

		return nil
	},
}

var watchService string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live monitor events",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(apiAddr)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var services []string
		if watchService != "" {
			services = []string{watchService}
		}

		return client.StreamEvents(ctx, services, "", func(ev audit.Event) {
			printEvent(ev)
		})
	},
}

func printEvent(ev audit.Event) {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case audit.EventTransition:
		fmt.Printf("%s %-12s %s -> %s", ts, ev.Service, ev.From, ev.To)
		if ev.Reason != "" {
			fmt.Printf(" (%s)", ev.Reason)
		}
		fmt.Println()
	case audit.EventIntervention:
		iv := ev.Intervention
		if iv == nil {
			return
		}
		result := "ok"
		if !iv.Success {
			result = "failed: " + iv.Error
		}
		fmt.Printf("%s %-12s %s/%s %s\n", ts, ev.Service, iv.Trigger, iv.Action, result)
	}
}

// formatDuration formats a duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	interventionsCmd.Flags().IntVarP(&interventionsLimit, "limit", "n", 50, "Maximum interventions to show")
	interventionsCmd.Flags().StringVar(&interventionsService, "service", "", "Filter by service")
	watchCmd.Flags().StringVar(&watchService, "service", "", "Filter by service")

	rootCmd.AddCommand(statusCmd, servicesCmd, interventionsCmd, watchCmd)
}
