package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/HerbHall/ihttstats/internal/format"
	"github.com/go-pdf/fpdf"
)

// Stripe and table header color (#88CFE0).
var accent = [3]int{0x88, 0xCF, 0xE0}

const (
	marginLeft   = 20.0
	marginTop    = 15.0
	marginRight  = 10.0
	marginBottom = 20.0
	rowHeight    = 7.0
)

// Table is one titled grid in a PDF document.
type Table struct {
	Caption string
	Headers []string
	Rows    [][]string
}

// Document is everything a PDF report shows.
type Document struct {
	Title       string
	Tables      []Table
	Params      string
	GeneratedBy string
	GeneratedAt time.Time
}

// RenderPDF draws doc as a landscape A4 PDF. Every page carries the accent
// stripe and a footer with page numbering, generation date, search
// parameters and the requester.
func RenderPDF(doc Document) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.AliasNbPages("")
	pdf.SetTitle(tr(doc.Title), false)

	pageW, pageH := pdf.GetPageSize()

	pdf.SetHeaderFunc(func() {
		pdf.SetFillColor(accent[0], accent[1], accent[2])
		pdf.Rect(4, 4, 10, pageH-8, "F")
	})
	pdf.SetFooterFunc(func() {
		y := pageH - 10
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(40, 40, 40)

		pdf.SetXY(25, y)
		pdf.CellFormat(55, 5, tr("Reporte generado el "+format.Date(doc.GeneratedAt)), "", 0, "L", false, 0, "")

		params := "Parámetros: " + doc.Params
		pdf.SetXY(80, y)
		pdf.CellFormat(pageW-80-40, 5, fit(pdf, tr(params), pageW-80-40), "", 0, "L", false, 0, "")

		pdf.SetXY(pageW-38, y)
		pdf.CellFormat(30, 5, tr(fmt.Sprintf("Página %d de {nb}", pdf.PageNo())), "", 0, "R", false, 0, "")

		pdf.SetXY(25, y+5)
		pdf.CellFormat(pageW-35, 5, tr("Generado por: "+doc.GeneratedBy), "", 0, "L", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(40, 40, 40)
	pdf.CellFormat(0, 12, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, t := range doc.Tables {
		drawTable(pdf, tr, t, pageW, pageH)
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawTable(pdf *fpdf.Fpdf, tr func(string) string, t Table, pageW, pageH float64) {
	if len(t.Headers) == 0 {
		return
	}
	width := (pageW - marginLeft - marginRight) / float64(len(t.Headers))
	limit := pageH - marginBottom

	if t.Caption != "" {
		if pdf.GetY()+2*rowHeight+8 > limit {
			pdf.AddPage()
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(t.Caption), "", 1, "L", false, 0, "")
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(accent[0], accent[1], accent[2])
		pdf.SetTextColor(255, 255, 255)
		for _, h := range t.Headers {
			pdf.CellFormat(width, rowHeight, fit(pdf, tr(h), width), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(40, 40, 40)
	}

	if pdf.GetY()+2*rowHeight > limit {
		pdf.AddPage()
	}
	header()
	for _, row := range t.Rows {
		if pdf.GetY()+rowHeight > limit {
			pdf.AddPage()
			header()
		}
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(width, rowHeight, fit(pdf, tr(cell), width), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// fit trims s until it fits in width at the current font, with padding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	avail := width - 2
	if pdf.GetStringWidth(s) <= avail {
		return s
	}
	b := []byte(s)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"...") > avail {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}
