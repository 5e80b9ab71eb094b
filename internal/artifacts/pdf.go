package artifacts

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/go-pdf/fpdf"
)

const pageMargin = 10.0

// TicketPDF wraps one ticket image in a single A4 page.
func (r *Renderer) TicketPDF(pngData []byte) ([]byte, error) {
	return r.BundlePDF([][]byte{pngData})
}

// BundlePDF lays out one ticket image per page, in order.
func (r *Renderer) BundlePDF(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("pdf: no pages")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	opts := fpdf.ImageOptions{ImageType: "PNG"}

	for i, data := range images {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("pdf: page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("ticket-%d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))

		pdf.AddPage()
		pageW, pageH := pdf.GetPageSize()
		w := pageW - 2*pageMargin
		h := w * float64(cfg.Height) / float64(cfg.Width)
		if maxH := pageH - 2*pageMargin; h > maxH {
			w = w * maxH / h
			h = maxH
		}
		pdf.ImageOptions(name, (pageW-w)/2, pageMargin, w, h, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}
