// internal/processor/results.go
package processor

import (
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/database"
)

// ResultProcessor handles formatting and summarizing of query results
type ResultProcessor struct{}

// NewResultProcessor creates a new result processor
func NewResultProcessor() *ResultProcessor {
	return &ResultProcessor{}
}

// QueryResults represents processed query results ready for presentation
type QueryResults struct {
	Summary    string                  `json:"summary"`              // Human-readable summary
	Columns    []string                `json:"columns"`              // Column names in SELECT order
	Rows       [][]interface{}         `json:"rows"`                 // Row values in result order
	RowCount   int                     `json:"row_count"`            // Rows returned after truncation
	Truncated  bool                    `json:"truncated"`            // Was data truncated?
	Statistics map[string]*ColumnStats `json:"statistics,omitempty"` // Per numeric column
}

// ColumnStats provides a statistical summary of one numeric column
type ColumnStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	Sum float64 `json:"sum"`
}

// ProcessResults converts an executed result set into user-friendly format
func (rp *ResultProcessor) ProcessResults(rs *database.ResultSet) (*QueryResults, error) {
	if rs == nil {
		return nil, fmt.Errorf("nil result set")
	}

	results := &QueryResults{
		Columns:   rs.Columns,
		Rows:      rs.Rows,
		RowCount:  rs.RowCount,
		Truncated: rs.Truncated,
	}

	stats := rp.computeStatistics(rs)
	if len(stats) > 0 {
		results.Statistics = stats
	}

	results.Summary = rp.generateSummary(rs, stats)
	return results, nil
}

// computeStatistics calculates min, max, avg, and sum for every column
// whose values are entirely numeric. Mixed and text columns are skipped.
func (rp *ResultProcessor) computeStatistics(rs *database.ResultSet) map[string]*ColumnStats {
	stats := make(map[string]*ColumnStats)

	for colIdx, col := range rs.Columns {
		var min, max, sum float64
		count := 0
		numeric := true

		for _, row := range rs.Rows {
			if colIdx >= len(row) {
				numeric = false
				break
			}
			val, ok := asFloat(row[colIdx])
			if !ok {
				if row[colIdx] == nil {
					continue
				}
				numeric = false
				break
			}
			if count == 0 || val < min {
				min = val
			}
			if count == 0 || val > max {
				max = val
			}
			sum += val
			count++
		}

		if numeric && count > 0 {
			stats[col] = &ColumnStats{
				Min: min,
				Max: max,
				Avg: sum / float64(count),
				Sum: sum,
			}
		}
	}

	return stats
}

// generateSummary creates a human-readable summary of the result set
func (rp *ResultProcessor) generateSummary(rs *database.ResultSet, stats map[string]*ColumnStats) string {
	if rs.RowCount == 0 {
		return "No data found"
	}

	noun := "rows"
	if rs.RowCount == 1 {
		noun = "row"
	}
	summary := fmt.Sprintf("Returned %d %s across %d columns", rs.RowCount, noun, len(rs.Columns))

	if rs.Truncated {
		summary += " (result truncated)"
	}

	// Surface stats for the first numeric column, in column order
	for _, col := range rs.Columns {
		if cs, ok := stats[col]; ok {
			summary += fmt.Sprintf(". %s: min=%.2f, max=%.2f, avg=%.2f", col, cs.Min, cs.Max, cs.Avg)
			break
		}
	}

	return summary
}

// asFloat converts a scanned SQLite value to float64 when possible
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		// SQLite's dynamic typing can hand back numerics as text
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%f", &f); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
