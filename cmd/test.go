package cmd

import (
	"fmt"

	"replibench/internal/service"

	"github.com/spf13/cobra"
)

var (
	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Test the connection to Replicate",
		Long: `Test connectivity to Replicate.
This command verifies that the API is reachable and that the configured
credential is accepted.`,
		RunE: runTest,
	}
)

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	p := newProvider()

	benchmarkService, err := service.NewBenchmarkService(p, configMgr.GetBenchmarkConfig())
	if err != nil {
		return fmt.Errorf("failed to create benchmark service: %w", err)
	}

	fmt.Println("Testing connection to Replicate...")
	fmt.Println()

	results := benchmarkService.TestConnections(cmd.Context())

	failed := 0
	for name, err := range results {
		if err != nil {
			fmt.Printf("❌ %s: %v\n", name, err)
			failed++
		} else {
			fmt.Printf("✅ %s: Connection successful\n", name)
		}
	}

	fmt.Println()
	fmt.Printf("Models available: %d\n", len(p.Models()))
	for _, m := range p.Models() {
		fmt.Printf("  • %s\n", m)
	}

	if failed > 0 {
		fmt.Println("⚠️  Connection test failed. Check your configuration.")
		return fmt.Errorf("connection test failed")
	}

	fmt.Println("🎉 Ready for benchmarking!")
	return nil
}
