// Package ocr provides optical character recognition for PDF documents whose
// native text layer is empty, which is the common case for scanned textbooks.
//
// Three engines implement OCRService:
//   - Tesseract (local): each page is rendered with pdftoppm and recognised with
//     the tesseract CLI using a fixed language pack and page segmentation mode.
//   - Google Cloud Vision: document text detection on the PDF, sent in parts of
//     at most MaxVisionPages pages.
//   - Google Document AI: an OCR processor, sent in parts of at most
//     MaxDocumentAIPages pages.
//
// Required Environment Variables for the cloud engines:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT / DOCUMENT_AI_PROCESSOR_ID for Document AI
//
// Page texts are always returned in page order.
package ocr

import (
	"context"
	"strings"
	"time"
)

// PageSeparator terminates every page in concatenated OCR text.
const PageSeparator = "\n\n"

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// ProcessPDF extracts text from the PDF at pdfPath.
	// Returns the page texts concatenated in page order.
	ProcessPDF(ctx context.Context, pdfPath string) (string, error)

	// ProcessPDFWithMetadata extracts text from the PDF at pdfPath with additional metadata.
	ProcessPDFWithMetadata(ctx context.Context, pdfPath string) (*OCRResult, error)
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the extracted text content from all pages, concatenated in reading order.
	Text string `json:"text"`

	// Pages holds the recognised text of each page, in page order.
	Pages []string `json:"pages,omitempty"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"page_count"`

	// Confidence is the average confidence reported by the engine (0.0 to 1.0).
	// Engines that report no confidence leave it at 0.
	Confidence float32 `json:"confidence"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// JoinPages concatenates page texts, each followed by PageSeparator.
func JoinPages(pages []string) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page)
		b.WriteString(PageSeparator)
	}
	return b.String()
}

// newResult builds an OCRResult from page texts, failing when nothing was recognised.
func newResult(pages []string, startTime time.Time) (*OCRResult, error) {
	text := JoinPages(pages)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	processedAt := time.Now()
	return &OCRResult{
		Text:               text,
		Pages:              pages,
		PageCount:          len(pages),
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}, nil
}
