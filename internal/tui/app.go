package tui

import (
	"context"
	"fmt"
	"strings"

	"replibench/internal/models"
	"replibench/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// App represents the TUI application
type App struct {
	benchmarkService *service.BenchmarkService
	request          models.BenchmarkRequest
}

// NewApp creates a new TUI application
func NewApp(benchmarkService *service.BenchmarkService, request models.BenchmarkRequest) *App {
	return &App{
		benchmarkService: benchmarkService,
		request:          request,
	}
}

// Run starts the TUI application; quitting cancels any running benchmark
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newModel(ctx, a.benchmarkService, a.request)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// State represents the current state of the application
type State int

const (
	StateMenu State = iota
	StateConnectionTest
	StateBenchmarkRunning
	StateResults
	StateError
)

// Model represents the TUI model
type Model struct {
	ctx              context.Context
	state            State
	benchmarkService *service.BenchmarkService
	request          models.BenchmarkRequest
	updates          chan benchmarkProgressMsg

	menuCursor int
	menuItems  []string

	connectionResults map[string]error
	connectionDone    bool

	benchmarkProgress map[string]BenchmarkProgress
	benchmarkDone     bool
	benchmarkError    error

	summaries map[string]models.BenchmarkSummary

	width  int
	height int
}

// BenchmarkProgress tracks progress for each model and transport
type BenchmarkProgress struct {
	Completed int
	Total     int
}

func newModel(ctx context.Context, benchmarkService *service.BenchmarkService, request models.BenchmarkRequest) Model {
	return Model{
		ctx:              ctx,
		state:            StateMenu,
		benchmarkService: benchmarkService,
		request:          request,
		updates:          make(chan benchmarkProgressMsg, 64),
		menuItems: []string{
			"Test Connection",
			"Run Benchmark",
			"Quit",
		},
		benchmarkProgress: make(map[string]BenchmarkProgress),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case connectionTestMsg:
		m.connectionResults = msg.results
		m.connectionDone = true
		return m, nil

	case benchmarkProgressMsg:
		m.benchmarkProgress[msg.key] = BenchmarkProgress{
			Completed: msg.completed,
			Total:     msg.total,
		}
		if m.benchmarkDone {
			return m, nil
		}
		return m, waitForProgress(m.updates)

	case benchmarkCompleteMsg:
		m.benchmarkDone = true
		m.summaries = m.benchmarkService.GenerateSummary(msg.results)
		m.state = StateResults
		return m, nil

	case benchmarkErrorMsg:
		m.benchmarkDone = true
		m.benchmarkError = msg.err
		m.state = StateError
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || msg.String() == "q" {
		return m, tea.Quit
	}

	switch m.state {
	case StateMenu:
		return m.handleMenuKeys(msg)
	case StateConnectionTest:
		if m.connectionDone && isBack(msg) {
			m.state = StateMenu
		}
	case StateResults, StateError:
		if isBack(msg) {
			m.state = StateMenu
		}
	}
	return m, nil
}

func isBack(msg tea.KeyMsg) bool {
	return msg.String() == "esc" || msg.String() == "b"
}

func (m Model) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(m.menuItems)-1 {
			m.menuCursor++
		}
	case "enter", " ":
		switch m.menuCursor {
		case 0:
			m.state = StateConnectionTest
			m.connectionDone = false
			return m, testConnections(m.ctx, m.benchmarkService)
		case 1:
			m.state = StateBenchmarkRunning
			m.benchmarkDone = false
			m.benchmarkProgress = make(map[string]BenchmarkProgress)
			return m, runBenchmark(m.ctx, m.benchmarkService, m.request, m.updates)
		case 2:
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the current view
func (m Model) View() string {
	switch m.state {
	case StateMenu:
		return m.renderMenu()
	case StateConnectionTest:
		return m.renderConnectionTest()
	case StateBenchmarkRunning:
		return m.renderBenchmark()
	case StateResults:
		return m.renderResults()
	case StateError:
		return m.renderError()
	}
	return ""
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5A56E0"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)
)

func (m Model) renderMenu() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Replicate Benchmark"))
	b.WriteString("\n\n")

	p := m.benchmarkService.GetProvider()
	modelNames := m.request.Models
	if len(modelNames) == 0 {
		modelNames = p.Models()
	}
	b.WriteString(fmt.Sprintf("Provider: %s\n", p.Name()))
	for _, name := range modelNames {
		b.WriteString(fmt.Sprintf("  • %s\n", name))
	}
	b.WriteString("\nChoose an option:\n\n")

	for i, item := range m.menuItems {
		if m.menuCursor == i {
			b.WriteString(selectedStyle.Render("> " + item))
		} else {
			b.WriteString(normalStyle.Render("  " + item))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(infoStyle.Render("Use ↑/↓ to navigate, Enter to select, q to quit"))

	return boxStyle.Render(b.String())
}

func (m Model) renderConnectionTest() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Connection Test"))
	b.WriteString("\n\n")

	if !m.connectionDone {
		b.WriteString("Testing connection...\n\n⏳ Please wait...")
		return boxStyle.Render(b.String())
	}

	for _, name := range service.SortedKeys(m.connectionResults) {
		if err := m.connectionResults[name]; err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("❌ %s: %v", name, err)))
		} else {
			b.WriteString(successStyle.Render(fmt.Sprintf("✅ %s: Connected", name)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(infoStyle.Render("Press 'b' or Esc to go back, q to quit"))
	return boxStyle.Render(b.String())
}

func (m Model) renderBenchmark() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Running Benchmark"))
	b.WriteString("\n\n")
	b.WriteString("Benchmark in progress...\n\n")

	for _, key := range service.SortedKeys(m.benchmarkProgress) {
		progress := m.benchmarkProgress[key]
		percentage := float64(progress.Completed) / float64(progress.Total) * 100
		b.WriteString(fmt.Sprintf("%s: %d/%d (%.1f%%)\n", key, progress.Completed, progress.Total, percentage))

		barWidth := 30
		filled := int(float64(barWidth) * percentage / 100)
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		b.WriteString(fmt.Sprintf("[%s]\n\n", bar))
	}

	b.WriteString(infoStyle.Render("Press Ctrl+C to cancel"))
	return boxStyle.Render(b.String())
}

func (m Model) renderResults() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Benchmark Results"))
	b.WriteString("\n\n")

	for _, key := range service.SortedKeys(m.summaries) {
		summary := m.summaries[key]
		b.WriteString(fmt.Sprintf("📊 %s\n", key))
		b.WriteString(strings.Repeat("-", 30) + "\n")
		b.WriteString(fmt.Sprintf("Successful:         %d/%d\n", summary.SuccessfulReqs, summary.TotalRequests))
		b.WriteString(fmt.Sprintf("Error Rate:         %.2f%%\n", summary.ErrorRate))
		b.WriteString(fmt.Sprintf("Avg Response Time:  %v\n", summary.AvgResponseTime))
		if summary.Transport == models.TransportTTFT {
			b.WriteString(fmt.Sprintf("Avg TTFT:           %v\n", summary.AvgTimeToFirstToken))
		} else {
			b.WriteString(fmt.Sprintf("Total Tokens:       %d\n", summary.TotalTokens))
			b.WriteString(fmt.Sprintf("Avg Throughput:     %.2f tokens/sec\n", summary.AvgTokenThroughput))
		}
		b.WriteString("\n")
	}

	b.WriteString(infoStyle.Render("Press 'b' or Esc to go back, q to quit"))
	return boxStyle.Render(b.String())
}

func (m Model) renderError() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Error"))
	b.WriteString("\n\n")
	b.WriteString(errorStyle.Render(fmt.Sprintf("❌ %v", m.benchmarkError)))
	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render("Press 'b' or Esc to go back, q to quit"))

	return boxStyle.Render(b.String())
}
