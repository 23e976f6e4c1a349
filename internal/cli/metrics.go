package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var metricsSince string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Aggregate sync and scheduling metrics from the event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized")
		}

		dur, err := time.ParseDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		m, err := MetricsCalc.Calculate(time.Now().UTC().Add(-dur))
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		fmt.Printf("Events (last %s): %d\n\n", metricsSince, m.EventCount)
		fmt.Printf("  %-26s %d\n", "Sync events received", m.SyncEventsReceived)
		fmt.Printf("  %-26s %d\n", "Sync state changes", m.SyncStateChanges)
		fmt.Printf("  %-26s %d\n", "Refused mutations", m.SyncRefusals)
		fmt.Printf("  %-26s %d\n", "Server task errors", m.ServerTaskErrors)
		fmt.Printf("  %-26s %d\n", "Reminders scheduled", m.RemindersScheduled)
		fmt.Printf("  %-26s %d\n", "Reminders fired", m.RemindersFired)
		fmt.Printf("  %-26s %d\n", "Reminders skipped", m.RemindersSkipped)
		fmt.Printf("  %-26s %d\n", "Due triggers scheduled", m.DueTriggersScheduled)
		fmt.Printf("  %-26s %d\n", "Due triggers dispatched", m.DueTriggersDispatched)
		fmt.Printf("  %-26s %d\n", "Due trigger failures", m.DueTriggerFailures)
		fmt.Printf("  %-26s %d\n", "Fields defaulted", m.FieldsDefaulted)
		fmt.Printf("  %-26s %d\n", "Cache expiries", m.CacheExpiries)

		return nil
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsSince, "since", "168h", "time window to aggregate over (Go duration)")
	rootCmd.AddCommand(metricsCmd)
}
