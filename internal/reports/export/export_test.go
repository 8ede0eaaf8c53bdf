package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() *Table {
	payback := 5.93
	return &Table{
		Name:     "Plan North/field",
		Title:    "Liming plan",
		Subtitle: "medium soil",
		Summary: []SummaryItem{
			{Label: "Parcel", Value: "North field"},
			{Label: "Area (ha)", Value: 10.5},
		},
		Columns: []Column{
			{Key: "year", Label: "Year", Numeric: true},
			{Key: "product", Label: "Product"},
			{Key: "dose", Label: "Dose (t/ha)", Precision: 2, Numeric: true},
			{Key: "payback", Label: "Payback", Precision: 1, Numeric: true},
		},
		Rows: []map[string]any{
			{"year": 2025, "product": "Dolomitic limestone, fine", "dose": 4.956, "payback": &payback},
			{"year": 2026, "product": "Ground limestone", "dose": 1.0},
		},
	}
}

func TestFormatText(t *testing.T) {
	var nilFloat *float64
	v := 2.345
	id := uuid.MustParse("3f1c0b7e-8a4d-4c7e-9f00-0a1b2c3d4e5f")
	tests := []struct {
		name      string
		val       any
		precision int
		want      string
	}{
		{"nil", nil, -1, ""},
		{"string", "jaro", -1, "jaro"},
		{"int", 7, -1, "7"},
		{"float full", 2.5, -1, "2.5"},
		{"float fixed", 2.5, 2, "2.50"},
		{"pointer", &v, 1, "2.3"},
		{"nil pointer", nilFloat, 2, ""},
		{"bool", true, -1, "yes"},
		{"time", time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC), -1, "2025-04-01"},
		{"zero time", time.Time{}, -1, ""},
		{"stringer", id, -1, id.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatText(tt.val, tt.precision, "2006-01-02"))
		})
	}
}

func TestTable_Validate(t *testing.T) {
	assert.Error(t, (&Table{Name: "empty"}).Validate())
	dup := &Table{Columns: []Column{{Key: "a"}, {Key: "a"}}}
	assert.ErrorContains(t, dup.Validate(), `duplicate column "a"`)

	table := sampleTable()
	require.NoError(t, table.Validate())
	assert.Equal(t, []string{"year", "product", "dose", "payback"}, table.Keys())
	assert.Equal(t, "Year", table.Labels()[0])
	assert.Equal(t, "x", (&Table{Columns: []Column{{Key: "x"}}}).Labels()[0])
}

func TestCSVExporter_WriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(&buf, DefaultCSVOptions()).WriteTable(sampleTable()))
	assert.Equal(t, strings.Join([]string{
		"Year,Product,Dose (t/ha),Payback",
		`2025,"Dolomitic limestone, fine",4.96,5.9`,
		"2026,Ground limestone,1.00,",
		"",
	}, "\n"), buf.String())

	buf.Reset()
	opts := DefaultCSVOptions()
	opts.IncludeSummary = true
	opts.Delimiter = ';'
	opts.UseCRLF = true
	require.NoError(t, NewCSVExporter(&buf, opts).WriteTable(sampleTable()))
	assert.True(t, strings.HasPrefix(buf.String(), "Parcel;North field\r\nArea (ha);10.5\r\n\r\nYear;Product"))

	assert.Error(t, NewCSVExporter(&buf, opts).WriteTable(&Table{}))
}

func TestExcelExporter_AddSheet(t *testing.T) {
	exporter, err := NewExcelExporter(DefaultExcelOptions())
	require.NoError(t, err)
	require.NoError(t, exporter.AddSheet(sampleTable()))
	second := sampleTable()
	second.Name = ""
	require.NoError(t, exporter.AddSheet(second))

	var buf bytes.Buffer
	_, err = exporter.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, exporter.Close())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Plan North-field", "Sheet2"}, f.GetSheetList())

	sheet := "Plan North-field"
	get := func(cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Liming plan", get("A1"))
	assert.Equal(t, "medium soil", get("A2"))
	assert.Equal(t, "Parcel", get("A3"))
	assert.Equal(t, "North field", get("B3"))
	// summary ends on row 4, one blank row, header on 6
	assert.Equal(t, "Year", get("A6"))
	assert.Equal(t, "Dose (t/ha)", get("C6"))
	assert.Equal(t, "4.96", get("C7"))
	assert.Equal(t, "", get("D8"))

	raw, err := f.GetCellValue(sheet, "C7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "4.956", raw)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet3", sheetName("  ", 2))
	assert.Equal(t, "a-b-c", sheetName("a/b?c", 0))
	assert.Len(t, []rune(sheetName(strings.Repeat("Ž", 40), 0)), 31)
}

func TestPDFGenerator(t *testing.T) {
	gen := NewPDFGenerator(DefaultPDFOptions())
	table := sampleTable()
	for i := 0; i < 80; i++ {
		table.Rows = append(table.Rows, map[string]any{"year": 2030 + i, "product": "Vápenec mletý", "dose": 0.5})
	}
	require.NoError(t, gen.AddTable(table))

	var buf bytes.Buffer
	require.NoError(t, gen.WriteTo(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, gen.pdf.PageNo(), 1)

	assert.Error(t, NewPDFGenerator(DefaultPDFOptions()).AddTable(&Table{Name: "empty"}))
}
