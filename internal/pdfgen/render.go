// Package pdfgen renders plain-text documents as simple single-column PDFs.
package pdfgen

import (
	"bytes"
	"strings"

	"github.com/go-pdf/fpdf"

	"resumeboost/internal/errors"
)

const (
	pageWidthMM  = 215.9 // US Letter
	marginMM     = 19.0
	titleSizePt  = 18.0
	bodySizePt   = 10.0
	bodyLineHtMM = 5.0
)

// Renderer produces PDF bytes from already-normalized text.
type Renderer struct {
	font string
}

func NewRenderer() *Renderer {
	return &Renderer{font: "Helvetica"}
}

// Render lays out the title centered at the top of the first page followed
// by the body as wrapped paragraphs. Page breaks are automatic.
func (r *Renderer) Render(title, body string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.SetMargins(marginMM, marginMM, marginMM)
	doc.SetAutoPageBreak(true, marginMM)
	doc.AddPage()

	usable := pageWidthMM - 2*marginMM

	if title != "" {
		doc.SetFont(r.font, "B", titleSizePt)
		doc.MultiCell(usable, 8.0, sanitizeForCore(title), "", "C", false)
		doc.Ln(4.0)
	}

	doc.SetFont(r.font, "", bodySizePt)
	for _, para := range strings.Split(body, "\n") {
		if strings.TrimSpace(para) == "" {
			doc.Ln(bodyLineHtMM)
			continue
		}
		doc.MultiCell(usable, bodyLineHtMM, sanitizeForCore(para), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodePDFRenderFailed, "failed to render PDF", err)
	}
	return buf.Bytes(), nil
}

// sanitizeForCore maps text into the cp1252 range the core fonts support.
// Unmappable runes degrade to '?' rather than failing the render.
func sanitizeForCore(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '‘' || r == '’':
			b.WriteByte('\'')
		case r == '“' || r == '”':
			b.WriteByte('"')
		case r == '–' || r == '—':
			b.WriteByte('-')
		case r == '•':
			b.WriteByte('*')
		case r < 0x80:
			b.WriteRune(r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
