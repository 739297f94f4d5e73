package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"corpus/internal/logger"
)

// MaxDocumentAIPages is the page limit of a synchronous OCR processor request.
const MaxDocumentAIPages = 15

// ErrInvalidConfiguration is returned when Document AI settings are incomplete.
var ErrInvalidConfiguration = errors.New("invalid Document AI configuration")

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID     string
	Location      string // "us" or "eu"
	ProcessorID   string // an OCR (Document OCR) processor
	Timeout       time.Duration
	LanguageHints []string
}

type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

// DocumentAIOCRService implements OCRService using a Google Document AI OCR processor.
type DocumentAIOCRService struct {
	client documentProcessor
	closer func() error
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIOCRService creates the processor client with credentials from environment.
func NewDocumentAIOCRService(ctx context.Context, config DocumentAIConfig) (*DocumentAIOCRService, error) {
	const op = "NewDocumentAIOCRService"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	clientOptions, err := credentialOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "no credentials found in environment")
	}
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	service := NewDocumentAIOCRServiceWithClient(config, client)
	service.closer = client.Close
	return service, nil
}

// NewDocumentAIOCRServiceWithClient creates the service with an explicit client (for testing).
func NewDocumentAIOCRServiceWithClient(config DocumentAIConfig, client documentProcessor) *DocumentAIOCRService {
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	return &DocumentAIOCRService{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-document-ai"),
	}
}

// ProcessPDF extracts text from a PDF document.
func (d *DocumentAIOCRService) ProcessPDF(ctx context.Context, pdfPath string) (string, error) {
	result, err := d.ProcessPDFWithMetadata(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessPDFWithMetadata sends the document in parts of at most MaxDocumentAIPages pages.
func (d *DocumentAIOCRService) ProcessPDFWithMetadata(ctx context.Context, pdfPath string) (*OCRResult, error) {
	const op = "ProcessPDFWithMetadata"
	startTime := time.Now()

	pdfBytes, err := readPDF(op, pdfPath)
	if err != nil {
		return nil, err
	}

	parts, err := splitPDF(pdfBytes, MaxDocumentAIPages)
	if err != nil {
		return nil, err
	}

	acc := newPageAccumulator()
	for i, part := range parts {
		if len(part) > MaxFileSizeBytes {
			return nil, WrapOCRError(op, ErrPDFTooLarge, fmt.Sprintf("part %d size: %d bytes", i+1, len(part)))
		}

		doc, err := d.processPart(ctx, part)
		if err != nil {
			return nil, WrapOCRError(op, err, fmt.Sprintf("part %d of %d", i+1, len(parts)))
		}
		addDocumentPages(acc, doc)

		d.log.Debug().
			Str("file", pdfPath).
			Int("part", i+1).
			Int("parts", len(parts)).
			Int("pages", len(doc.Pages)).
			Msg("Document AI part processed")
	}

	return acc.result(startTime)
}

func (d *DocumentAIOCRService) processPart(ctx context.Context, part []byte) (*documentaipb.Document, error) {
	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  part,
				MimeType: "application/pdf",
			},
		},
	}
	if len(d.config.LanguageHints) > 0 {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{
					LanguageHints: d.config.LanguageHints,
				},
			},
		}
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, d.handleProcessingError(err)
	}
	if resp.Document == nil {
		return nil, fmt.Errorf("%w: no document in response", ErrOCRFailed)
	}
	return resp.Document, nil
}

func (d *DocumentAIOCRService) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// handleProcessingError maps Document AI status strings to OCR errors.
func (d *DocumentAIOCRService) handleProcessingError(err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("%w: insufficient permissions for Document AI", ErrMissingCredentials)
	case strings.Contains(errStr, "NOT_FOUND"):
		return fmt.Errorf("%w: processor not found: %s", ErrInvalidConfiguration, d.config.ProcessorID)
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return fmt.Errorf("%w: document format not supported or corrupted", ErrInvalidPDF)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: Document AI error: %v", ErrOCRFailed, err)
	}
}

// addDocumentPages resolves each page's text anchor against the document text.
// A response without pages contributes its whole text as one page.
func addDocumentPages(acc *pageAccumulator, doc *documentaipb.Document) {
	text := []rune(doc.Text)
	if len(doc.Pages) == 0 {
		acc.addPage(doc.Text, 0, nil)
		return
	}

	for _, page := range doc.Pages {
		var b strings.Builder
		var confidence float32
		if page.Layout != nil {
			confidence = page.Layout.Confidence
			if page.Layout.TextAnchor != nil {
				for _, seg := range page.Layout.TextAnchor.TextSegments {
					b.WriteString(sliceRunes(text, seg.StartIndex, seg.EndIndex))
				}
			}
		}

		var languages []string
		for _, lang := range page.DetectedLanguages {
			languages = append(languages, lang.LanguageCode)
		}
		acc.addPage(b.String(), confidence, languages)
	}
}

func sliceRunes(text []rune, start, end int64) string {
	n := int64(len(text))
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return ""
	}
	return string(text[start:end])
}

// Close closes the underlying Document AI client.
func (d *DocumentAIOCRService) Close() error {
	if d.closer != nil {
		return d.closer()
	}
	return nil
}
