package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFTextEngine reads the embedded text layer of a PDF. Scanned PDFs without
// one yield ErrNoText. The pdf reader panics on malformed files; those panics
// are returned as errors.
type PDFTextEngine struct{}

func NewPDFTextEngine() *PDFTextEngine { return &PDFTextEngine{} }

func (e *PDFTextEngine) Name() string { return "pdf-text" }

func (e *PDFTextEngine) Recognize(ctx context.Context, path string, _ string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdf: %w", ErrNoText)
	}
	return strings.Join(pages, "\n\n"), nil
}
