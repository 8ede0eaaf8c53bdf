package export

import (
	"fmt"
	"strconv"
	"time"
)

// Column describes one exported column
type Column struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Precision int    `json:"precision"` // decimals for floats; 0 keeps full precision
	Numeric   bool   `json:"numeric"`
}

// Table is a titled grid of rows keyed by Column.Key. Summary holds
// label/value pairs printed above the grid.
type Table struct {
	Name     string           `json:"name"`
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle,omitempty"`
	Summary  []SummaryItem    `json:"summary,omitempty"`
	Columns  []Column         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
}

// SummaryItem is a labelled figure of a table header block
type SummaryItem struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Keys returns the column keys in order
func (t *Table) Keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

// Labels returns the column labels, falling back to the key
func (t *Table) Labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
		if labels[i] == "" {
			labels[i] = c.Key
		}
	}
	return labels
}

// Validate rejects tables without columns or with duplicate keys
func (t *Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Key] {
			return fmt.Errorf("table %q: duplicate column %q", t.Name, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

func (c Column) decimals() int {
	if c.Precision == 0 {
		return -1
	}
	return c.Precision
}

// formatText renders a value for the text formats (CSV and PDF)
func formatText(val any, precision int, dateFormat string) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(dateFormat)
	case fmt.Stringer:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', precision, 64)
	case *float64:
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', precision, 64)
	case bool:
		if v {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprintf("%v", val)
}
