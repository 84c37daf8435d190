package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SummaryItem is one label/value pair in a report summary block.
type SummaryItem struct {
	Label string
	Value string
}

// Section is one titled table within a report.
type Section struct {
	Title string
	Data  Dataset
}

// ReportDocument describes a rendered activity report: a title line, a
// key/value summary block and zero or more tabular sections.
type ReportDocument struct {
	Title    string
	Subtitle string
	Summary  []SummaryItem
	Sections []Section
}

// PDFExporter renders report documents into a printable PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF for the document.
func (e *PDFExporter) Render(doc ReportDocument) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, doc.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	if len(doc.Summary) > 0 {
		pdf.SetFont("Arial", "B", 10)
		for _, item := range doc.Summary {
			pdf.CellFormat(70, 7, item.Label, "1", 0, "", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(120, 7, item.Value, "1", 1, "", false, 0, "")
			pdf.SetFont("Arial", "B", 10)
		}
		pdf.Ln(4)
	}

	for _, section := range doc.Sections {
		if len(section.Data.Headers) == 0 {
			continue
		}
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, section.Title, "", 1, "", false, 0, "")

		pdf.SetFont("Arial", "B", 9)
		colWidth := 190.0 / float64(len(section.Data.Headers))
		for _, header := range section.Data.Headers {
			pdf.CellFormat(colWidth, 7, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range section.Data.Rows {
			for _, header := range section.Data.Headers {
				pdf.CellFormat(colWidth, 6, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
