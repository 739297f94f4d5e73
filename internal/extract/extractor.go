// Package extract reads the text of a PDF document, falling back to OCR when
// the document has no usable text layer.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"corpus/internal/logger"
	"corpus/internal/ocr"
	"corpus/pkg/models"
)

// PageSeparator follows every page in the raw text.
const PageSeparator = "\n\n"

var (
	// ErrDocumentNotFound is returned when the source file does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNoContent is returned when neither the text layer nor OCR yields text.
	ErrNoContent = errors.New("no extractable content")
)

// ExtractError records the failing operation and document.
type ExtractError struct {
	Op   string
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// TextLayer returns the native text of each page of a PDF, in page order.
type TextLayer interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// PDFTextLayer reads the embedded text layer with ledongthuc/pdf.
type PDFTextLayer struct{}

// Pages returns the plain text of every page. Pages without content or whose
// text cannot be decoded are returned empty.
func (PDFTextLayer) Pages(ctx context.Context, path string) (pages []string, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read text layer: %v", r)
		}
	}()

	numPages := reader.NumPage()
	pages = make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

// Extractor produces a Document from a PDF path.
type Extractor struct {
	textLayer TextLayer
	ocr       ocr.OCRService
	log       zerolog.Logger
}

// New creates an Extractor reading the native text layer, with ocrService as
// fallback. A nil ocrService disables the fallback.
func New(ocrService ocr.OCRService) *Extractor {
	return NewWithDeps(PDFTextLayer{}, ocrService)
}

// NewWithDeps creates an Extractor with an explicit text layer (for testing).
func NewWithDeps(textLayer TextLayer, ocrService ocr.OCRService) *Extractor {
	return &Extractor{
		textLayer: textLayer,
		ocr:       ocrService,
		log:       logger.WithComponent("extractor"),
	}
}

// Extract reads the document at path. The OCR fallback runs exactly once, and
// only when the trimmed text-layer output is empty.
func (e *Extractor) Extract(ctx context.Context, path string) (*models.Document, error) {
	const op = "Extract"
	startTime := time.Now()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ExtractError{Op: op, Path: path, Err: ErrDocumentNotFound}
		}
		return nil, &ExtractError{Op: op, Path: path, Err: err}
	}

	doc := &models.Document{
		Name:   filepath.Base(path),
		Path:   path,
		Source: models.SourceTextLayer,
	}

	pages, err := e.textLayer.Pages(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ExtractError{Op: op, Path: path, Err: ctx.Err()}
		}
		// Unreadable text layers are common on scans; OCR gets a chance.
		e.log.Warn().
			Err(err).
			Str("file", path).
			Msg("Text layer unreadable")
		pages = nil
	}
	doc.Pages = normalizePages(pages)
	doc.RawText = joinPages(doc.Pages)

	if doc.RawText == "" {
		if err := e.fallback(ctx, doc); err != nil {
			return nil, &ExtractError{Op: op, Path: path, Err: err}
		}
	}

	if doc.RawText == "" {
		return nil, &ExtractError{Op: op, Path: path, Err: ErrNoContent}
	}

	e.log.Info().
		Str("file", doc.Name).
		Str("source", doc.Source).
		Int("pages", len(doc.Pages)).
		Int("words", models.CountWords(doc.RawText)).
		Dur("duration", time.Since(startTime)).
		Msg("Document extracted")

	return doc, nil
}

func (e *Extractor) fallback(ctx context.Context, doc *models.Document) error {
	if e.ocr == nil {
		e.log.Warn().
			Str("file", doc.Path).
			Msg("No text layer and OCR disabled")
		return nil
	}

	e.log.Info().
		Str("file", doc.Path).
		Msg("No text layer, running OCR")

	result, err := e.ocr.ProcessPDFWithMetadata(ctx, doc.Path)
	if err != nil {
		if errors.Is(err, ocr.ErrEmptyDocument) {
			return ErrNoContent
		}
		return fmt.Errorf("OCR fallback: %w", err)
	}

	pages := result.Pages
	if len(pages) == 0 {
		pages = []string{result.Text}
	}
	doc.Pages = normalizePages(pages)
	doc.RawText = joinPages(doc.Pages)
	doc.Source = models.SourceOCR
	return nil
}

// normalizePages composes every page to NFC so the correction table sees
// precomposed Vietnamese letters.
func normalizePages(pages []string) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = norm.NFC.String(p)
	}
	return out
}

// joinPages appends every non-empty page followed by PageSeparator and trims the result.
func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		if p == "" {
			continue
		}
		b.WriteString(p)
		b.WriteString(PageSeparator)
	}
	return strings.TrimSpace(b.String())
}
