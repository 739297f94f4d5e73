package ocr

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"corpus/internal/logger"
)

const (
	// MaxFileSizeBytes is the maximum request size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxVisionPages is the maximum number of pages per synchronous Vision request
	MaxVisionPages = 5
)

// fileAnnotator is the part of the Vision client the service uses.
type fileAnnotator interface {
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
}

// GoogleVisionOCRService implements OCRService using Google Cloud Vision API.
type GoogleVisionOCRService struct {
	client        fileAnnotator
	closer        func() error
	languageHints []string
	log           zerolog.Logger
}

// NewGoogleVisionOCRService creates a new OCR service with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionOCRService(ctx context.Context, languageHints []string) (*GoogleVisionOCRService, error) {
	const op = "NewGoogleVisionOCRService"

	opts, err := credentialOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "no credentials found in environment")
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	service := NewGoogleVisionOCRServiceWithClient(client, languageHints)
	service.closer = client.Close
	return service, nil
}

// NewGoogleVisionOCRServiceWithClient creates a new OCR service with an explicit client (for testing).
func NewGoogleVisionOCRServiceWithClient(client fileAnnotator, languageHints []string) *GoogleVisionOCRService {
	return &GoogleVisionOCRService{
		client:        client,
		languageHints: languageHints,
		log:           logger.WithComponent("ocr-vision"),
	}
}

// credentialOptions prefers inline credentials, then a credentials file, then
// application default credentials.
func credentialOptions() ([]option.ClientOption, error) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, nil
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		if _, err := os.Stat(credFile); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, nil
	}
	return nil, nil
}

// ProcessPDF extracts text from a PDF document.
func (g *GoogleVisionOCRService) ProcessPDF(ctx context.Context, pdfPath string) (string, error) {
	result, err := g.ProcessPDFWithMetadata(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessPDFWithMetadata extracts text from a PDF document with additional metadata.
// Documents longer than MaxVisionPages are sent in consecutive parts.
func (g *GoogleVisionOCRService) ProcessPDFWithMetadata(ctx context.Context, pdfPath string) (*OCRResult, error) {
	const op = "ProcessPDFWithMetadata"
	startTime := time.Now()

	pdfBytes, err := readPDF(op, pdfPath)
	if err != nil {
		return nil, err
	}

	parts, err := splitPDF(pdfBytes, MaxVisionPages)
	if err != nil {
		return nil, err
	}

	acc := newPageAccumulator()
	for i, part := range parts {
		if len(part) > MaxFileSizeBytes {
			return nil, WrapOCRError(op, ErrPDFTooLarge, fmt.Sprintf("part %d size: %d bytes", i+1, len(part)))
		}
		if err := g.annotatePart(ctx, part, acc); err != nil {
			return nil, WrapOCRError(op, err, fmt.Sprintf("part %d of %d", i+1, len(parts)))
		}
		g.log.Debug().
			Str("file", pdfPath).
			Int("part", i+1).
			Int("parts", len(parts)).
			Msg("Vision part processed")
	}

	return acc.result(startTime)
}

func (g *GoogleVisionOCRService) annotatePart(ctx context.Context, part []byte, acc *pageAccumulator) error {
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  part,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{
						Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
					},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: g.languageHints,
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: Vision API call failed: %v", ErrOCRFailed, err)
	}
	if len(resp.Responses) == 0 {
		return fmt.Errorf("%w: no response from Vision API", ErrOCRFailed)
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return fmt.Errorf("%w: Vision API error: %s", ErrOCRFailed, fileResp.Error.Message)
	}

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return fmt.Errorf("%w: page %d: %s", ErrOCRFailed, pageIdx+1, page.Error.Message)
		}
		acc.addVisionPage(page.FullTextAnnotation)
	}
	return nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionOCRService) Close() error {
	if g.closer != nil {
		return g.closer()
	}
	return nil
}

// pageAccumulator collects page texts, confidences and languages across parts.
type pageAccumulator struct {
	pages           []string
	confidenceSum   float32
	confidenceCount int
	languages       map[string]bool
}

func newPageAccumulator() *pageAccumulator {
	return &pageAccumulator{languages: make(map[string]bool)}
}

func (a *pageAccumulator) addVisionPage(annotation *visionpb.TextAnnotation) {
	if annotation == nil {
		a.pages = append(a.pages, "")
		return
	}
	a.pages = append(a.pages, annotation.Text)

	for _, page := range annotation.Pages {
		if page.Confidence > 0 {
			a.confidenceSum += page.Confidence
			a.confidenceCount++
		}
		if page.Property != nil {
			for _, lang := range page.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					a.languages[lang.LanguageCode] = true
				}
			}
		}
	}
}

func (a *pageAccumulator) addPage(text string, confidence float32, languages []string) {
	a.pages = append(a.pages, text)
	if confidence > 0 {
		a.confidenceSum += confidence
		a.confidenceCount++
	}
	for _, lang := range languages {
		if lang != "" {
			a.languages[lang] = true
		}
	}
}

func (a *pageAccumulator) result(startTime time.Time) (*OCRResult, error) {
	result, err := newResult(a.pages, startTime)
	if err != nil {
		return nil, err
	}
	if a.confidenceCount > 0 {
		result.Confidence = a.confidenceSum / float32(a.confidenceCount)
	}
	for lang := range a.languages {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)
	return result, nil
}
