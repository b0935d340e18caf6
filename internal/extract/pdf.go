// Package extract provides per-page text extraction from PDF bytes.
package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/gk6450/mcq-gen/internal/models"
)

// Pages extracts the plain text of every page in the PDF, in page order.
// Page numbers are 1-based. A page without extractable text (scanned or
// image-only) yields an empty text entry; an unreadable PDF returns an error.
func Pages(content []byte) ([]models.PageText, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]models.PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.PageText{Page: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, models.PageText{Page: i})
			continue
		}
		pages = append(pages, models.PageText{Page: i, Text: text})
	}
	return pages, nil
}
