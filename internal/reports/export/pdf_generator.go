package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator renders tables as paginated PDF documents
type PDFGenerator struct {
	pdf       *gofpdf.Fpdf
	options   PDFOptions
	translate func(string) string
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"`   // A4, Letter, Legal
	Orientation    string     `json:"orientation"` // portrait, landscape
	Author         string     `json:"author,omitempty"`
	DateFormat     string     `json:"date_format"`
	IncludePageNum bool       `json:"include_page_num"`
	IncludeDate    bool       `json:"include_date"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateRows  bool       `json:"alternate_rows"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	HeaderFontSize float64    `json:"header_font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns landscape A4 with a green header row
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		DateFormat:     "2006-01-02",
		IncludePageNum: true,
		IncludeDate:    true,
		HeaderColor:    PDFColor{R: 78, G: 122, B: 39},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       9,
		HeaderFontSize: 9,
		TitleFontSize:  15,
		Margins: PDFMargins{
			Left:   12,
			Right:  12,
			Top:    15,
			Bottom: 18,
		},
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)
	if options.Author != "" {
		pdf.SetAuthor(options.Author, true)
	}

	// core fonts only cover cp1252
	g := &PDFGenerator{
		pdf:       pdf,
		options:   options,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	g.setFooter()
	return g
}

// AddTable renders t on a new page: title, summary block and the grid.
// The header row repeats after every page break.
func (g *PDFGenerator) AddTable(t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	g.pdf.AddPage()
	g.pdf.SetTitle(t.Title, true)

	g.addTitle(t.Title)
	if t.Subtitle != "" {
		g.addSubtitle(t.Subtitle)
	}
	if g.options.IncludeDate {
		g.addDate()
	}
	if len(t.Summary) > 0 {
		g.addSummary(t.Summary)
	}
	g.pdf.Ln(4)

	widths := g.calculateColumnWidths(t)
	labels := t.Labels()
	g.addTableHeader(labels, widths)
	g.addTableData(t, labels, widths)
	return g.pdf.Error()
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

func (g *PDFGenerator) addTitle(title string) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.translate(title), "", 1, "L", false, 0, "")
}

func (g *PDFGenerator) addSubtitle(subtitle string) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+2)
	g.pdf.SetTextColor(90, 90, 90)
	g.pdf.CellFormat(0, 7, g.translate(subtitle), "", 1, "L", false, 0, "")
}

func (g *PDFGenerator) addDate() {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	g.pdf.SetTextColor(128, 128, 128)
	dateStr := fmt.Sprintf("Generated: %s", time.Now().Format(g.options.DateFormat))
	g.pdf.CellFormat(0, 6, dateStr, "", 1, "R", false, 0, "")
}

func (g *PDFGenerator) addSummary(items []SummaryItem) {
	g.pdf.Ln(2)
	g.pdf.SetTextColor(0, 0, 0)
	for _, item := range items {
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		g.pdf.CellFormat(55, 5.5, g.translate(item.Label+":"), "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.CellFormat(0, 5.5, g.translate(formatText(item.Value, -1, g.options.DateFormat)), "", 1, "L", false, 0, "")
	}
}

// calculateColumnWidths sizes columns to their widest cell and scales the
// result down to the printable width.
func (g *PDFGenerator) calculateColumnWidths(t *Table) []float64 {
	pageWidth, _ := g.pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right

	widths := make([]float64, len(t.Columns))
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	for i, label := range t.Labels() {
		widths[i] = g.pdf.GetStringWidth(g.translate(label)) + 4
	}

	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	sample := t.Rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, col := range t.Columns {
			w := g.pdf.GetStringWidth(g.translate(formatText(row[col.Key], col.decimals(), g.options.DateFormat))) + 4
			if w > widths[i] {
				widths[i] = w
			}
		}
	}

	var total float64
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(labels []string, widths []float64) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 7, g.translate(label), "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addTableData(t *Table, labels []string, widths []float64) {
	_, pageHeight := g.pdf.GetPageSize()
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)

	for i, row := range t.Rows {
		if g.pdf.GetY()+6 > pageHeight-g.options.Margins.Bottom {
			g.pdf.AddPage()
			g.addTableHeader(labels, widths)
			g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
			g.pdf.SetTextColor(0, 0, 0)
		}
		if g.options.AlternateRows && i%2 == 1 {
			g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		for j, col := range t.Columns {
			val := g.fit(g.translate(formatText(row[col.Key], col.decimals(), g.options.DateFormat)), widths[j]-2)
			align := "L"
			if col.Numeric {
				align = "R"
			}
			g.pdf.CellFormat(widths[j], 6, val, "1", 0, align, true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

// fit truncates s with an ellipsis until it fits width
func (g *PDFGenerator) fit(s string, width float64) string {
	if g.pdf.GetStringWidth(s) <= width {
		return s
	}
	b := []byte(s)
	for len(b) > 0 && g.pdf.GetStringWidth(string(b)+"...") > width {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}

func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		if !g.options.IncludePageNum {
			return
		}
		g.pdf.SetY(-12)
		g.pdf.SetFont(g.options.FontFamily, "", 7)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}
