package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamops/sentinel/internal/chaos"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
)

var (
	chaosReport string
	chaosPoll   int
)

var chaosCmd = &cobra.Command{
	Use:   "chaos",
	Short: "Fault-injection testing against a running monitor",
}

var chaosRunCmd = &cobra.Command{
	Use:   "run <suite.yaml>",
	Short: "Run a chaos suite and score automatic recovery",
	Long: `chaos run injects the faults described in the suite file and watches
the running monitor through its diagnostics API. A scenario passes only when
the monitor restored health on its own; manual restores performed during
cleanup never count. Never run this against a production host.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, err := chaos.LoadSuite(args[0])
		if err != nil {
			return err
		}

		client := NewClient(apiAddr)
		if _, err := client.GetStatus(); err != nil {
			return fmt.Errorf("%w\nIs sentinel running? The harness scores a live monitor", err)
		}

		logger := newLogger()
		env := &chaos.Env{
			Exec:     executor.NewShellExecutor(),
			Observer: &apiObserver{client: client},
			Logger:   logger,
			Poll:     time.Duration(chaosPoll) * time.Second,
		}
		runner := chaos.NewRunner(env, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Running suite %q: %d scenarios\n\n", suite.Name, len(suite.Scenarios))

		scenarios := suite.Build()
		records := make([]chaos.Record, 0, len(scenarios))
		for i, sc := range scenarios {
			if i > 0 && suite.SettleTime() > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(suite.SettleTime()):
				}
			}
			recs := runner.Run(ctx, []chaos.Scenario{sc})
			records = append(records, recs...)
			printRecord(recs[0])
		}

		score := chaos.ScoreRecords(records)
		fmt.Printf("\n%d/%d scenarios passed\n", score.Passed, score.Total)

		if chaosReport != "" {
			report := chaos.NewReport(suite.Name, records)
			if err := report.Write(chaosReport); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", chaosReport)
		}

		if score.Failed > 0 {
			return fmt.Errorf("%d scenarios failed", score.Failed)
		}
		return nil
	},
}

func printRecord(rec chaos.Record) {
	result := "PASS"
	if !rec.Success {
		result = "FAIL"
	}
	fmt.Printf("[%s] %s (%s on %s) in %s\n",
		result, rec.Name, rec.Kind, rec.Target, rec.Duration().Round(time.Millisecond))
	if rec.Error != "" {
		fmt.Printf("       %s\n", rec.Error)
	}
	if rec.ManualRestore {
		fmt.Println("       target was restored manually during cleanup")
	}
}

// apiObserver implements chaos.Observer over the diagnostics API
type apiObserver struct {
	client *Client
}

func (o *apiObserver) Snapshot(ctx context.Context) (domain.DiagnosticsSnapshot, error) {
	snap, err := o.client.GetHealth()
	if err != nil {
		return domain.DiagnosticsSnapshot{}, err
	}
	return *snap, nil
}

func init() {
	chaosRunCmd.Flags().StringVarP(&chaosReport, "report", "o", "", "Write a JSON report to this file")
	chaosRunCmd.Flags().IntVar(&chaosPoll, "poll", 0, "Seconds between diagnostics polls (default 2)")
	chaosCmd.AddCommand(chaosRunCmd)
	rootCmd.AddCommand(chaosCmd)
}
