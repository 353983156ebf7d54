package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/edgegate/edgegate/internal/core/telemetry"
)

var (
	metricsDate   string
	metricsHour   int
	metricsOutput string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Read traffic rollups from the shared store",
	Long: `Read aggregated traffic metrics directly from the shared counter
store. Defaults to today's daily rollup; pass --hour for an hourly
bucket with latency statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsOutput != "table" && metricsOutput != "json" {
			return fmt.Errorf("unsupported output format: %s", metricsOutput)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		counter, err := openCounter(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = counter.Close() }()

		aggregator := telemetry.NewAggregator(counter, nil, cfg.Telemetry.WriteTimeout)

		if cmd.Flags().Changed("hour") {
			if metricsHour < 0 || metricsHour > 23 {
				return fmt.Errorf("hour %d out of range", metricsHour)
			}
			summary, err := aggregator.Hourly(cmd.Context(), metricsDate, metricsHour)
			if err != nil {
				return err
			}
			return renderHourly(summary)
		}

		summary, err := aggregator.Daily(cmd.Context(), metricsDate)
		if err != nil {
			return err
		}
		return renderDaily(summary)
	},
}

func renderDaily(summary *telemetry.Summary) error {
	if metricsOutput == "json" {
		return printJSON(summary)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Daily traffic %s", summary.Date)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Total requests", summary.TotalRequests})
	t.AppendRow(table.Row{"Errors", summary.Errors})
	t.AppendRow(table.Row{"Error rate", fmt.Sprintf("%.2f%%", summary.ErrorRate)})

	for _, method := range sortedKeys(summary.RequestsByMethod) {
		t.AppendRow(table.Row{method + " requests", summary.RequestsByMethod[method]})
	}
	for _, status := range sortedKeys(summary.StatusCodes) {
		t.AppendRow(table.Row{"HTTP " + status, summary.StatusCodes[status]})
	}

	t.Render()
	return nil
}

func renderHourly(summary *telemetry.HourlySummary) error {
	if metricsOutput == "json" {
		return printJSON(summary)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Hourly traffic %s %02d:00", summary.Date, summary.Hour)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Requests", summary.Requests})
	t.AppendRow(table.Row{"Latency samples", summary.LatencyCount})
	t.AppendRow(table.Row{"Avg latency", fmt.Sprintf("%.1fms", summary.AvgLatencyMs)})
	t.AppendRow(table.Row{"P95 latency", fmt.Sprintf("%.1fms", summary.P95LatencyMs)})

	t.Render()
	return nil
}

func printJSON(payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVar(&metricsDate, "date", "", "rollup date as YYYY-MM-DD (default today, UTC)")
	metricsCmd.Flags().IntVar(&metricsHour, "hour", 0, "hourly bucket 0-23; omit for the daily rollup")
	metricsCmd.Flags().StringVar(&metricsOutput, "output-format", "table", "Output format: table|json")
}
