package cmd

import (
	"fmt"
	"strings"

	"replibench/internal/charts"

	"github.com/spf13/cobra"
)

var (
	displayCmd = &cobra.Command{
		Use:   "display <results-file>",
		Short: "Display saved benchmark results",
		Long: `Display benchmark results from a previously saved YAML file.
This command allows you to view results from past benchmark runs without
re-running the benchmark. You can display either text summary or charts.`,
		Args: cobra.ExactArgs(1),
		RunE: runDisplay,
	}

	// Display flags
	displayCharts bool
	displayJSON   bool
)

func init() {
	rootCmd.AddCommand(displayCmd)

	displayCmd.Flags().BoolVar(&displayCharts, "charts", false, "Display bar charts for response time, TTFT and throughput")
	displayCmd.Flags().BoolVar(&displayJSON, "json", false, "Output results in JSON format")
}

func runDisplay(cmd *cobra.Command, args []string) error {
	filename := args[0]

	resultsFile, err := loadBenchmarkResults(filename)
	if err != nil {
		return fmt.Errorf("failed to load results from %s: %w", filename, err)
	}

	if displayJSON {
		return outputJSONResults(resultsFile.Summaries, resultsFile.Results)
	}

	meta := resultsFile.Metadata
	fmt.Printf("📁 Loaded results from: %s\n", filename)
	fmt.Printf("🆔 Run: %s\n", resultsFile.RunID)
	fmt.Printf("🕒 Benchmark run time: %s\n", resultsFile.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("💬 Message: %s\n", meta.Message)
	fmt.Printf("🤖 Models: %s via %s\n", strings.Join(meta.Models, ", "), joinTransports(meta.Transports))
	fmt.Printf("📊 Requests: %d, Concurrency: %d, Max Tokens: %d, TTFT Max Tokens: %d\n",
		meta.Requests, meta.Concurrency, meta.MaxTokens, meta.TTFTMaxTokens)
	fmt.Println()

	if displayCharts {
		fmt.Println(strings.Repeat("=", 80))
		fmt.Println("BENCHMARK CHARTS")
		fmt.Println(strings.Repeat("=", 80))

		chartGen := charts.NewChartGenerator(60, 15)
		fmt.Print(chartGen.GenerateAllCharts(resultsFile.Summaries))
		fmt.Println(strings.Repeat("=", 80))
		return nil
	}

	return outputTextResults(resultsFile.Summaries)
}
