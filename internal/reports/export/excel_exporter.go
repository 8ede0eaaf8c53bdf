package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes tables as sheets of one workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	sheets  int
	header  int
	data    int
	title   int
	numeric map[int]int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	AutoWidth    bool              `json:"auto_width"`
	DateFormat   string            `json:"date_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		DateFormat:   "yyyy-mm-dd",
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4E7A27",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize: 11,
			Border:   true,
		},
	}
}

// NewExcelExporter creates an empty workbook
func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	e := &ExcelExporter{
		file:    excelize.NewFile(),
		options: options,
		numeric: make(map[int]int),
	}
	var err error
	if options.HeaderStyle != nil {
		if e.header, err = e.createStyle(options.HeaderStyle, ""); err != nil {
			return nil, fmt.Errorf("failed to create header style: %w", err)
		}
	}
	if options.DataStyle != nil {
		if e.data, err = e.createStyle(options.DataStyle, ""); err != nil {
			return nil, fmt.Errorf("failed to create data style: %w", err)
		}
	}
	if e.title, err = e.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	return e, nil
}

// AddSheet writes t to a new sheet: title, summary block, header and rows.
// The first sheet replaces the default one.
func (e *ExcelExporter) AddSheet(t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	name := sheetName(t.Name, e.sheets)
	if e.sheets == 0 {
		if err := e.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	} else if _, err := e.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	e.sheets++

	row := 1
	if t.Title != "" {
		e.file.SetCellValue(name, "A1", t.Title)
		e.file.SetCellStyle(name, "A1", "A1", e.title)
		row++
		if t.Subtitle != "" {
			e.file.SetCellValue(name, "A2", t.Subtitle)
			row++
		}
	}
	for _, item := range t.Summary {
		e.setCellValue(name, cellName(1, row), item.Label, 0)
		e.setCellValue(name, cellName(2, row), item.Value, 0)
		row++
	}
	if row > 1 {
		row++
	}

	headerRow := row
	for i, label := range t.Labels() {
		cell := cellName(i+1, headerRow)
		e.file.SetCellValue(name, cell, label)
		if e.header > 0 {
			e.file.SetCellStyle(name, cell, cell, e.header)
		}
	}

	widths := make([]float64, len(t.Columns))
	for i, label := range t.Labels() {
		widths[i] = estimateWidth(label)
	}
	for r, values := range t.Rows {
		for i, col := range t.Columns {
			cell := cellName(i+1, headerRow+1+r)
			val := values[col.Key]
			if err := e.setCellValue(name, cell, val, col.Precision); err != nil {
				return fmt.Errorf("failed to set %s: %w", cell, err)
			}
			if w := estimateWidth(val); w > widths[i] {
				widths[i] = w
			}
		}
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(name, &excelize.Panes{
			Freeze:      true,
			YSplit:      headerRow,
			TopLeftCell: cellName(1, headerRow+1),
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(t.Rows) > 0 {
		ref := cellName(1, headerRow) + ":" + cellName(len(t.Columns), headerRow+len(t.Rows))
		if err := e.file.AutoFilter(name, ref, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}
	if e.options.AutoWidth {
		for i, w := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			e.file.SetColWidth(name, col, col, min(max(w, 10), 50))
		}
	}
	return nil
}

// WriteTo writes the workbook to w
func (e *ExcelExporter) WriteTo(w io.Writer) (int64, error) {
	return e.file.WriteTo(w)
}

// Close releases the workbook
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// createStyle creates an Excel style from config with an optional number format
func (e *ExcelExporter) createStyle(config *ExcelStyleConfig, numFmt string) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	if numFmt != "" {
		style.CustomNumFmt = &numFmt
	}
	return e.file.NewStyle(style)
}

// numberStyle returns a cached data style showing precision decimals
func (e *ExcelExporter) numberStyle(precision int) (int, error) {
	if id, ok := e.numeric[precision]; ok {
		return id, nil
	}
	format := "#,##0"
	if precision > 0 {
		format += "." + strings.Repeat("0", precision)
	}
	config := e.options.DataStyle
	if config == nil {
		config = &ExcelStyleConfig{}
	}
	id, err := e.createStyle(config, format)
	if err != nil {
		return 0, err
	}
	e.numeric[precision] = id
	return id, nil
}

// setCellValue writes numbers as numbers so spreadsheets can sum them
func (e *ExcelExporter) setCellValue(sheet, cell string, val any, precision int) error {
	style := e.data
	switch v := normalize(val).(type) {
	case nil:
		val = ""
	case float64:
		val = v
		if precision > 0 {
			id, err := e.numberStyle(precision)
			if err != nil {
				return err
			}
			style = id
		}
	case time.Time:
		val = v
		if v.IsZero() {
			val = ""
			break
		}
		id, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.DateFormat})
		if err != nil {
			return err
		}
		style = id
	default:
		val = v
	}
	if err := e.file.SetCellValue(sheet, cell, val); err != nil {
		return err
	}
	if style > 0 {
		return e.file.SetCellStyle(sheet, cell, cell, style)
	}
	return nil
}

// normalize dereferences optional numbers and turns identifiers into text
func normalize(val any) any {
	switch v := val.(type) {
	case *float64:
		if v == nil {
			return nil
		}
		return *v
	case time.Time:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return val
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// sheetName trims to the 31 characters Excel allows and drops reserved runes
func sheetName(name string, index int) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// estimateWidth is a rough character count with padding
func estimateWidth(val any) float64 {
	val = normalize(val)
	if val == nil {
		return 0
	}
	return float64(len([]rune(fmt.Sprintf("%v", val)))) * 1.2
}
