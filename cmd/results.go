package cmd

import (
	"fmt"
	"os"
	"time"

	"replibench/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// BenchmarkResultsFile is the on-disk form of a benchmark run
type BenchmarkResultsFile struct {
	RunID     string                              `yaml:"run_id"`
	Timestamp time.Time                           `yaml:"timestamp"`
	Metadata  BenchmarkMetadata                   `yaml:"metadata"`
	Summaries map[string]models.BenchmarkSummary  `yaml:"summaries"`
	Results   map[string][]models.BenchmarkResult `yaml:"results"`
}

// BenchmarkMetadata records the parameters of a run
type BenchmarkMetadata struct {
	Provider      string             `yaml:"provider"`
	Message       string             `yaml:"message"`
	Models        []string           `yaml:"models"`
	Transports    []models.Transport `yaml:"transports"`
	Requests      int                `yaml:"requests"`
	Concurrency   int                `yaml:"concurrency"`
	MaxTokens     int                `yaml:"max_tokens"`
	TTFTMaxTokens int                `yaml:"ttft_max_tokens"`
}

func newResultsFile(meta BenchmarkMetadata, summaries map[string]models.BenchmarkSummary, results map[string][]models.BenchmarkResult) *BenchmarkResultsFile {
	return &BenchmarkResultsFile{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
		Summaries: summaries,
		Results:   results,
	}
}

// saveBenchmarkResults writes a results file as YAML
func saveBenchmarkResults(filename string, rf *BenchmarkResultsFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// loadBenchmarkResults loads benchmark results from a YAML file
func loadBenchmarkResults(filename string) (*BenchmarkResultsFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var resultsFile BenchmarkResultsFile
	if err := yaml.Unmarshal(data, &resultsFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &resultsFile, nil
}
