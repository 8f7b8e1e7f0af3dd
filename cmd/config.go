package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func initConfiguration(cmd *cobra.Command, args []string) error {
	configPath := "replibench.yaml"
	if len(args) == 1 {
		configPath = args[0]
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	dir := filepath.Dir(configPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := configMgr.CreateSampleConfig(configPath); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	fmt.Printf("✅ Configuration file created at %s\n", configPath)
	fmt.Println("\n📝 Please edit the configuration file to add your API key and adjust settings.")
	fmt.Println("   The key can also be supplied through the REPLICATE_API_KEY environment variable.")

	return nil
}

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage replibench configuration files and settings.`,
	}

	initConfigCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a new configuration file",
		Long: `Initialize a new configuration file with sample settings.
If no path is provided, creates replibench.yaml in the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: initConfiguration,
	}

	showConfigCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the current configuration settings.`,
		RunE:  showConfig,
	}

	validateConfigCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long:  `Validate the current configuration file for errors.`,
		RunE:  validateConfig,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func showConfig(cmd *cobra.Command, args []string) error {
	config := configMgr.GetConfig()
	if config == nil {
		return fmt.Errorf("no configuration loaded")
	}

	r := config.Replicate
	fmt.Println("Current Configuration:")
	fmt.Println("=====================")

	fmt.Printf("Base URL: %s\n", r.BaseURL)
	fmt.Printf("API Key: %s\n", maskAPIKey(r.APIKey))
	fmt.Printf("Poll: initial %s, max %s, x%.1f, jitter %.2f, %d attempts, timeout %s\n",
		r.Poll.InitialInterval, r.Poll.MaxInterval, r.Poll.Multiplier, r.Poll.Jitter, r.Poll.MaxAttempts, r.Poll.Timeout)

	fmt.Println("\nModels:")
	for i, m := range r.Models {
		fmt.Printf("  %d. %s\n", i+1, m.Name)
		fmt.Printf("     SDK identifier:  %s\n", m.Identifier)
		fmt.Printf("     Predictions URL: %s\n", m.PredictionsURL)
	}

	b := config.Benchmark
	fmt.Println("\nBenchmark:")
	fmt.Printf("  Requests: %d\n", b.Requests)
	fmt.Printf("  Concurrency: %d\n", b.Concurrency)
	fmt.Printf("  Timeout: %s\n", b.Timeout)
	fmt.Printf("  Max Tokens: %d\n", b.MaxTokens)
	fmt.Printf("  TTFT Max Tokens: %d\n", b.TTFTMaxTokens)

	return nil
}

func validateConfig(cmd *cobra.Command, args []string) error {
	config := configMgr.GetConfig()
	if config == nil {
		return fmt.Errorf("no configuration loaded")
	}

	fmt.Println("✅ Configuration is valid")
	fmt.Printf("Found %d model(s) configured\n", len(config.Replicate.Models))
	if config.Replicate.APIKey == "" {
		fmt.Println("⚠️  No API key configured; set REPLICATE_API_KEY before running benchmarks")
	}

	return nil
}

func maskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}
