package tui

import (
	"context"

	"replibench/internal/models"
	"replibench/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

// Messages for the TUI

// connectionTestMsg is sent when connection test completes
type connectionTestMsg struct {
	results map[string]error
}

// benchmarkProgressMsg is sent to update benchmark progress
type benchmarkProgressMsg struct {
	key       string
	completed int
	total     int
}

// benchmarkCompleteMsg is sent when benchmark completes
type benchmarkCompleteMsg struct {
	results map[string][]models.BenchmarkResult
}

// benchmarkErrorMsg is sent when benchmark fails
type benchmarkErrorMsg struct {
	err error
}

func testConnections(ctx context.Context, bs *service.BenchmarkService) tea.Cmd {
	return func() tea.Msg {
		return connectionTestMsg{results: bs.TestConnections(ctx)}
	}
}

// runBenchmark starts the benchmark and streams progress through updates.
// Progress is dropped rather than blocking the run when the channel is full.
func runBenchmark(ctx context.Context, bs *service.BenchmarkService, request models.BenchmarkRequest, updates chan benchmarkProgressMsg) tea.Cmd {
	run := func() tea.Msg {
		results, err := bs.RunBenchmark(ctx, request, func(key string, completed, total int) {
			select {
			case updates <- benchmarkProgressMsg{key: key, completed: completed, total: total}:
			default:
			}
		})
		if err != nil {
			return benchmarkErrorMsg{err: err}
		}
		return benchmarkCompleteMsg{results: results}
	}
	return tea.Batch(run, waitForProgress(updates))
}

func waitForProgress(updates <-chan benchmarkProgressMsg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}
