package charts

import (
	"fmt"
	"sort"
	"strings"

	"replibench/internal/models"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
)

// Green, Red, Yellow, Blue, Magenta, Cyan, White, Cyan
var palette = []string{"10", "9", "11", "12", "13", "14", "15", "6"}

// ChartGenerator renders bar charts for benchmark summaries
type ChartGenerator struct {
	width  int
	height int
}

// NewChartGenerator creates a new chart generator with specified dimensions
func NewChartGenerator(width, height int) *ChartGenerator {
	return &ChartGenerator{
		width:  width,
		height: height,
	}
}

// LegendEntry represents a single entry in the chart legend
type LegendEntry struct {
	Label string
	Value float64
	Unit  string
	Color string
}

// metric extracts a value from a summary; ok is false when the summary has no data for it
type metric func(models.BenchmarkSummary) (value float64, ok bool)

// generateLegend creates a formatted legend showing the numerical values
func (cg *ChartGenerator) generateLegend(entries []LegendEntry, title string) string {
	if len(entries) == 0 {
		return ""
	}

	sorted := make([]LegendEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	var legend strings.Builder
	legend.WriteString(fmt.Sprintf("\n📋 %s Legend:\n", title))
	legend.WriteString(strings.Repeat("─", cg.width) + "\n")

	maxLabelLen := 0
	for _, entry := range sorted {
		if len(entry.Label) > maxLabelLen {
			maxLabelLen = len(entry.Label)
		}
	}

	for i, entry := range sorted {
		indicator := lipgloss.NewStyle().Foreground(lipgloss.Color(entry.Color)).Render("■")
		legend.WriteString(fmt.Sprintf("  %s %-*s: %s %s\n",
			indicator, maxLabelLen, entry.Label, formatValue(entry.Value), entry.Unit))

		if i < len(sorted)-1 {
			legend.WriteString("    " + strings.Repeat("·", maxLabelLen+10) + "\n")
		}
	}

	return legend.String()
}

func formatValue(v float64) string {
	switch {
	case v < 1:
		return fmt.Sprintf("%.3f", v)
	case v < 10:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

// render draws one bar per summary key that has data for m
func (cg *ChartGenerator) render(summaries map[string]models.BenchmarkSummary, title, series, unit string, m metric) (string, bool) {
	keys := make([]string, 0, len(summaries))
	for key, summary := range summaries {
		if _, ok := m(summary); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)

	var barData []barchart.BarData
	var legendEntries []LegendEntry
	for i, key := range keys {
		value, _ := m(summaries[key])
		color := palette[i%len(palette)]

		barData = append(barData, barchart.BarData{
			Label: key,
			Values: []barchart.BarValue{
				{Name: series, Value: value, Style: lipgloss.NewStyle().Foreground(lipgloss.Color(color))},
			},
		})
		legendEntries = append(legendEntries, LegendEntry{Label: key, Value: value, Unit: unit, Color: color})
	}

	bc := barchart.New(cg.width, cg.height)
	bc.PushAll(barData)
	bc.Draw()

	result := fmt.Sprintf("📊 %s (%s)\n%s\n%s", title, unit, strings.Repeat("─", cg.width), bc.View())
	result += cg.generateLegend(legendEntries, series+" Values")
	return result, true
}

// GenerateTTFTChart creates a bar chart showing average time to first token
func (cg *ChartGenerator) GenerateTTFTChart(summaries map[string]models.BenchmarkSummary) string {
	out, ok := cg.render(summaries, "Time to First Token", "TTFT", "ms", func(s models.BenchmarkSummary) (float64, bool) {
		return float64(s.AvgTimeToFirstToken.Nanoseconds()) / 1e6, s.AvgTimeToFirstToken > 0
	})
	if !ok {
		return "No TTFT data available for chart"
	}
	return out
}

// GenerateThroughputChart creates a bar chart showing average token throughput
func (cg *ChartGenerator) GenerateThroughputChart(summaries map[string]models.BenchmarkSummary) string {
	out, ok := cg.render(summaries, "Token Throughput", "Throughput", "tokens/sec", func(s models.BenchmarkSummary) (float64, bool) {
		return s.AvgTokenThroughput, s.AvgTokenThroughput > 0
	})
	if !ok {
		return "No throughput data available for chart"
	}
	return out
}

// GenerateResponseTimeChart creates a bar chart showing average response times
func (cg *ChartGenerator) GenerateResponseTimeChart(summaries map[string]models.BenchmarkSummary) string {
	out, ok := cg.render(summaries, "Average Response Time", "Response Time", "ms", func(s models.BenchmarkSummary) (float64, bool) {
		return float64(s.AvgResponseTime.Nanoseconds()) / 1e6, s.AvgResponseTime > 0
	})
	if !ok {
		return "No data available for response time chart"
	}
	return out
}

// GenerateAllCharts generates all available charts for the given summaries
func (cg *ChartGenerator) GenerateAllCharts(summaries map[string]models.BenchmarkSummary) string {
	var b strings.Builder
	b.WriteString(cg.GenerateResponseTimeChart(summaries) + "\n\n")
	b.WriteString(cg.GenerateTTFTChart(summaries) + "\n\n")
	b.WriteString(cg.GenerateThroughputChart(summaries) + "\n\n")
	return b.String()
}
