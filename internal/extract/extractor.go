// Package extract turns PDF bytes into plain text.
//
// Pages are joined with "-- i of n --" markers so that readers can cut the
// text back into pages (see package paginate).
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"
)

// ErrNotPDF is returned when the input does not start with the PDF header.
var ErrNotPDF = errors.New("not a PDF document")

// Result is the extracted text of one document.
type Result struct {
	// Pages is the physical page count, nil when it could not be determined.
	Pages *int   `json:"pages"`
	Text  string `json:"text"`
}

// TextExtractor extracts text from PDF bytes.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*Result, error)
}

// PDFExtractor extracts text with ledongthuc/pdf and counts pages with pdfcpu.
type PDFExtractor struct {
	logger *slog.Logger
}

var _ TextExtractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger.With("component", "extractor")}
}

// Extract returns the document text with page markers and the page count.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}

	pages, err := readPages(ctx, data)
	if err != nil {
		return nil, err
	}

	count, err := countPages(data)
	if err != nil {
		// pdfcpu is stricter than the text reader; fall back to what we read
		e.logger.Debug("pdfcpu page count failed", "error", err)
		count = len(pages)
	}

	return &Result{
		Pages: &count,
		Text:  norm.NFC.String(JoinPages(pages)),
	}, nil
}

// IsPDF reports whether data starts with the "%PDF-" header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// JoinPages concatenates page texts, following each with its
// "-- i of n --" marker.
func JoinPages(pages []string) string {
	var b strings.Builder
	n := len(pages)
	for i, p := range pages {
		b.WriteString(strings.TrimSpace(p))
		fmt.Fprintf(&b, "\n\n-- %d of %d --\n\n", i+1, n)
	}
	return b.String()
}

// Truncate returns the first limit characters of text.
// A limit <= 0 returns text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// readPages extracts the plain text of every page in order.
// Pages that cannot be read yield an empty string.
func readPages(ctx context.Context, data []byte) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// countPages returns the page count as reported by pdfcpu.
func countPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}
