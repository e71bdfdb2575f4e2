// Package pdftext extracts the text layer of PDF menus, page by page.
// Scanned menus with no text layer are reported as such so callers can
// route them to manual handling instead of silently producing an empty
// extraction.
package pdftext

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/rshdesign/redliner/core/errors"
)

// Result is the extraction payload for one PDF.
type Result struct {
	Pages        []string `json:"pages"`
	FullText     string   `json:"full_text"`
	PageCount    int      `json:"page_count"`
	HasTextLayer bool     `json:"has_text_layer"`
}

// Extract reads every page's plain text from a PDF file.
func Extract(path string) (*Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.NewIO("open pdf", path, err)
	}
	defer f.Close()

	res := &Result{PageCount: r.NumPage()}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			res.Pages = append(res.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page degrades to empty text.
			text = ""
		}
		res.Pages = append(res.Pages, text)
		if strings.TrimSpace(text) != "" {
			res.HasTextLayer = true
		}
	}
	res.FullText = strings.Join(res.Pages, "\n")
	return res, nil
}
