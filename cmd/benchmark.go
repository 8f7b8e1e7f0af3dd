package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"replibench/internal/charts"
	"replibench/internal/metrics"
	"replibench/internal/models"
	"replibench/internal/service"
	"replibench/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	benchmarkCmd = &cobra.Command{
		Use:   "benchmark",
		Short: "Run benchmark tests against Replicate models",
		Long: `Run benchmark tests against the configured Replicate models.
Each selected model is exercised over each selected transport: "http" creates
and polls predictions through the REST API, "sdk" runs them through the
Replicate SDK, and "ttft" measures time to first token on an SDK stream.`,
		RunE: runBenchmark,
	}

	// Benchmark flags
	message       string
	requests      int
	concurrent    int
	maxTokens     int
	ttftMaxTokens int
	modelNames    []string
	transports    []string
	outputJSON    bool
	showCharts    bool
	interactive   bool
	outputFile    string
	pushgateway   string
)

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().StringVarP(&message, "message", "m", "Write a short poem about the sea.", "Prompt to send to the model")
	benchmarkCmd.Flags().IntVarP(&requests, "requests", "r", 0, "Number of requests per model and transport (overrides config)")
	benchmarkCmd.Flags().IntVarP(&concurrent, "concurrent", "c", 0, "Number of concurrent requests (overrides config)")
	benchmarkCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum output tokens for http and sdk calls (overrides config)")
	benchmarkCmd.Flags().IntVar(&ttftMaxTokens, "ttft-max-tokens", 0, "Maximum output tokens for ttft calls (overrides config)")
	benchmarkCmd.Flags().StringSliceVar(&modelNames, "models", nil, "Models to benchmark (default all configured)")
	benchmarkCmd.Flags().StringSliceVarP(&transports, "transports", "t", []string{"http", "sdk", "ttft"}, "Transports to benchmark: http, sdk, ttft")
	benchmarkCmd.Flags().BoolVar(&outputJSON, "json", false, "Output results in JSON format")
	benchmarkCmd.Flags().BoolVar(&showCharts, "charts", false, "Display bar charts after the summary")
	benchmarkCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	benchmarkCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Save results to a YAML file")
	benchmarkCmd.Flags().StringVar(&pushgateway, "pushgateway", "", "Push metrics to this Prometheus Pushgateway URL")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	config := configMgr.GetBenchmarkConfig()

	if requests > 0 {
		config.Requests = requests
	}
	if concurrent > 0 {
		config.Concurrency = concurrent
	}
	if maxTokens > 0 {
		config.MaxTokens = maxTokens
	}
	if ttftMaxTokens > 0 {
		config.TTFTMaxTokens = ttftMaxTokens
	}

	collector := metrics.New()
	p := newProvider()

	benchmarkService, err := service.NewBenchmarkService(p, config,
		service.WithMetrics(collector),
		service.WithLogger(logger.Named("benchmark")),
	)
	if err != nil {
		return fmt.Errorf("failed to create benchmark service: %w", err)
	}

	benchmarkRequest := models.BenchmarkRequest{
		Prompt:        message,
		Models:        modelNames,
		Transports:    parseTransports(transports),
		MaxTokens:     config.MaxTokens,
		TTFTMaxTokens: config.TTFTMaxTokens,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if interactive {
		app := tui.NewApp(benchmarkService, benchmarkRequest)
		return app.Run(ctx)
	}

	return runCLIBenchmark(ctx, benchmarkService, benchmarkRequest, collector)
}

func parseTransports(values []string) []models.Transport {
	out := make([]models.Transport, 0, len(values))
	for _, v := range values {
		out = append(out, models.Transport(strings.ToLower(strings.TrimSpace(v))))
	}
	return out
}

func runCLIBenchmark(ctx context.Context, benchmarkService *service.BenchmarkService, request models.BenchmarkRequest, collector *metrics.Collector) error {
	config := benchmarkService.GetConfig()
	modelList := request.Models
	if len(modelList) == 0 {
		modelList = benchmarkService.GetProvider().Models()
	}

	fmt.Println("Starting benchmark...")
	fmt.Printf("Message: %s\n", request.Prompt)
	fmt.Printf("Models: %s\n", strings.Join(modelList, ", "))
	fmt.Printf("Transports: %s\n", joinTransports(request.Transports))
	fmt.Printf("Requests per model and transport: %d\n", config.Requests)
	fmt.Printf("Concurrency: %d\n", config.Concurrency)
	fmt.Println()

	fmt.Println("Testing connection...")
	for name, err := range benchmarkService.TestConnections(ctx) {
		if err != nil {
			fmt.Printf("❌ %s: %v\n", name, err)
			return fmt.Errorf("connection test failed: %w", err)
		}
		fmt.Printf("✅ %s: Connected\n", name)
	}
	fmt.Println()

	fmt.Println("Running benchmark...")

	progressCallback := func(key string, completed, total int) {
		fmt.Printf("\r%s: %d/%d completed", key, completed, total)
		if completed == total {
			fmt.Printf(" ✅\n")
		}
	}

	results, err := benchmarkService.RunBenchmark(ctx, request, progressCallback)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	fmt.Println("\nGenerating summary...")
	summaries := benchmarkService.GenerateSummary(results)

	if pushgateway != "" {
		if err := collector.Push(ctx, pushgateway, "replibench"); err != nil {
			logger.Warn("failed to push metrics", zap.String("url", pushgateway), zap.Error(err))
		}
	}

	if outputFile != "" {
		rf := newResultsFile(BenchmarkMetadata{
			Provider:      benchmarkService.GetProvider().Name(),
			Message:       request.Prompt,
			Models:        modelList,
			Transports:    request.Transports,
			Requests:      config.Requests,
			Concurrency:   config.Concurrency,
			MaxTokens:     request.MaxTokens,
			TTFTMaxTokens: request.TTFTMaxTokens,
		}, summaries, results)
		if err := saveBenchmarkResults(outputFile, rf); err != nil {
			return fmt.Errorf("failed to save results to %s: %w", outputFile, err)
		}
		fmt.Printf("💾 Results saved to %s\n", outputFile)
	}

	if outputJSON {
		return outputJSONResults(summaries, results)
	}

	if err := outputTextResults(summaries); err != nil {
		return err
	}
	if showCharts {
		fmt.Print(charts.NewChartGenerator(60, 15).GenerateAllCharts(summaries))
	}
	return nil
}

func joinTransports(ts []models.Transport) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func outputJSONResults(summaries map[string]models.BenchmarkSummary, results map[string][]models.BenchmarkResult) error {
	output := struct {
		Summaries map[string]models.BenchmarkSummary  `json:"summaries"`
		Results   map[string][]models.BenchmarkResult `json:"results"`
	}{
		Summaries: summaries,
		Results:   results,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func outputTextResults(summaries map[string]models.BenchmarkSummary) error {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BENCHMARK RESULTS")
	fmt.Println(strings.Repeat("=", 80))

	for _, key := range service.SortedKeys(summaries) {
		summary := summaries[key]
		fmt.Printf("\n📊 %s - %s (%s)\n", strings.ToUpper(summary.Provider), summary.ModelName, summary.Transport)
		fmt.Println(strings.Repeat("-", 50))
		fmt.Printf("Total Requests:     %d\n", summary.TotalRequests)
		fmt.Printf("Successful:         %d\n", summary.SuccessfulReqs)
		fmt.Printf("Failed:             %d\n", summary.FailedRequests)
		fmt.Printf("Error Rate:         %.2f%%\n", summary.ErrorRate)
		fmt.Printf("Avg Response Time:  %v\n", summary.AvgResponseTime)
		fmt.Printf("Min Response Time:  %v\n", summary.MinResponseTime)
		fmt.Printf("Max Response Time:  %v\n", summary.MaxResponseTime)

		if summary.Transport == models.TransportTTFT {
			fmt.Printf("Avg Time to First Token: %v\n", summary.AvgTimeToFirstToken)
			fmt.Printf("Min Time to First Token: %v\n", summary.MinTimeToFirstToken)
			fmt.Printf("Max Time to First Token: %v\n", summary.MaxTimeToFirstToken)
			continue
		}

		fmt.Printf("Total Tokens:       %d\n", summary.TotalTokens)
		fmt.Printf("Avg Token Throughput:    %.2f tokens/sec\n", summary.AvgTokenThroughput)
		fmt.Printf("Min Token Throughput:    %.2f tokens/sec\n", summary.MinTokenThroughput)
		fmt.Printf("Max Token Throughput:    %.2f tokens/sec\n", summary.MaxTokenThroughput)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	return nil
}
