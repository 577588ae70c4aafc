package processor

import (
	"github.com/querypilot/querypilot/internal/database"
)

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Cap on chart categories so a wide result does not render as noise
const maxChartPoints = 25

// ChartConfig describes a renderable chart derived from a result set
type ChartConfig struct {
	ChartType  string        `json:"chart_type"`
	Title      string        `json:"title,omitempty"`
	XAxis      string        `json:"x_axis,omitempty"`
	YAxis      string        `json:"y_axis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"show_legend"`
	ShowGrid   bool          `json:"show_grid"`
}

// ChartSeries is one named series of labeled points
type ChartSeries struct {
	Name string       `json:"name"`
	Data []ChartPoint `json:"data"`
}

// ChartPoint is one labeled value
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartBuilder derives an automatic bar chart from a result set
type ChartBuilder struct{}

// NewChartBuilder creates a new chart builder
func NewChartBuilder() *ChartBuilder {
	return &ChartBuilder{}
}

// BuildChart produces a bar chart when the result has one text column to
// label by and one numeric column to plot. Anything else returns nil,
// which the caller treats as "not chartable".
func (cb *ChartBuilder) BuildChart(rs *database.ResultSet) *ChartConfig {
	if rs == nil || rs.RowCount == 0 {
		return nil
	}

	labelIdx := cb.findLabelColumn(rs)
	valueIdx := cb.findValueColumn(rs, labelIdx)
	if labelIdx < 0 || valueIdx < 0 {
		return nil
	}

	// Aggregate by label so a repeated category becomes one bar
	totals := make(map[string]float64)
	order := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		label, ok := row[labelIdx].(string)
		if !ok || label == "" {
			continue
		}
		val, ok := asFloat(row[valueIdx])
		if !ok {
			continue
		}
		if _, seen := totals[label]; !seen {
			order = append(order, label)
		}
		totals[label] += val
	}

	if len(order) == 0 || len(order) > maxChartPoints {
		return nil
	}

	points := make([]ChartPoint, 0, len(order))
	for _, label := range order {
		points = append(points, ChartPoint{Label: label, Value: totals[label]})
	}

	series := []ChartSeries{{
		Name: rs.Columns[valueIdx],
		Data: points,
	}}

	return &ChartConfig{
		ChartType:  "bar",
		XAxis:      rs.Columns[labelIdx],
		YAxis:      rs.Columns[valueIdx],
		Series:     series,
		Colors:     assignColors(len(series)),
		ShowLegend: true,
		ShowGrid:   true,
	}
}

// findLabelColumn returns the first column whose values are all text
func (cb *ChartBuilder) findLabelColumn(rs *database.ResultSet) int {
	for colIdx := range rs.Columns {
		textual := true
		nonNil := 0
		for _, row := range rs.Rows {
			if colIdx >= len(row) || row[colIdx] == nil {
				continue
			}
			if _, ok := row[colIdx].(string); !ok {
				textual = false
				break
			}
			if _, isNum := asFloat(row[colIdx]); isNum {
				textual = false
				break
			}
			nonNil++
		}
		if textual && nonNil > 0 {
			return colIdx
		}
	}
	return -1
}

// findValueColumn returns the first numeric column other than the label
func (cb *ChartBuilder) findValueColumn(rs *database.ResultSet, labelIdx int) int {
	for colIdx := range rs.Columns {
		if colIdx == labelIdx {
			continue
		}
		numeric := true
		nonNil := 0
		for _, row := range rs.Rows {
			if colIdx >= len(row) || row[colIdx] == nil {
				continue
			}
			if _, ok := asFloat(row[colIdx]); !ok {
				numeric = false
				break
			}
			nonNil++
		}
		if numeric && nonNil > 0 {
			return colIdx
		}
	}
	return -1
}

func assignColors(n int) []string {
	colors := make([]string, n)
	for i := 0; i < n; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
