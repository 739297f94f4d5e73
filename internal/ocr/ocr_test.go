package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
)

func writeFakePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJoinPages(t *testing.T) {
	got := JoinPages([]string{"a", "", "b"})
	if got != "a\n\n\n\nb\n\n" {
		t.Errorf("JoinPages = %q", got)
	}
}

func TestPageRanges(t *testing.T) {
	got := strings.Join(pageRanges(12, 5), ",")
	if got != "1-5,6-10,11-12" {
		t.Errorf("pageRanges(12, 5) = %s", got)
	}
	if pageRanges(0, 5) != nil {
		t.Error("pageRanges(0, 5) should be empty")
	}
}

type call struct {
	name string
	args []string
}

func TestTesseract_PagesInOrder(t *testing.T) {
	var calls []call
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		if name != "tesseract" {
			return nil, nil
		}
		switch {
		case strings.Contains(args[0], "page-0001"):
			return []byte("Trang một"), nil
		case strings.Contains(args[0], "page-0002"):
			return nil, errors.New("tesseract crashed")
		default:
			return []byte("Trang ba"), nil
		}
	}
	pageCount := func(string) (int, error) { return 3, nil }

	svc := NewTesseractOCRServiceWithRunner(DefaultTesseractConfig(), run, pageCount)
	result, err := svc.ProcessPDFWithMetadata(context.Background(), writeFakePDF(t))
	if err != nil {
		t.Fatalf("ProcessPDFWithMetadata: %v", err)
	}

	if result.Text != "Trang một\n\n\n\nTrang ba\n\n" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", result.PageCount)
	}
	if len(calls) != 6 {
		t.Fatalf("got %d commands, want render+recognize for 3 pages", len(calls))
	}

	render := strings.Join(calls[0].args, " ")
	if calls[0].name != "pdftoppm" || !strings.HasPrefix(render, "-f 1 -l 1 -r 300 -png -singlefile") {
		t.Errorf("render command = %s %s", calls[0].name, render)
	}
	recognize := strings.Join(calls[1].args[1:], " ")
	if recognize != "stdout -l vie --oem 3 --psm 6" {
		t.Errorf("recognize args = %s", recognize)
	}
}

func TestTesseract_NoTextIsEmptyDocument(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("  \n"), nil
	}
	svc := NewTesseractOCRServiceWithRunner(DefaultTesseractConfig(), run, func(string) (int, error) { return 2, nil })

	_, err := svc.ProcessPDF(context.Background(), writeFakePDF(t))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestTesseract_AllPagesFailed(t *testing.T) {
	missing := errors.New("Error opening data file vie.traineddata")
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "tesseract" {
			return nil, missing
		}
		return nil, nil
	}
	svc := NewTesseractOCRServiceWithRunner(DefaultTesseractConfig(), run, func(string) (int, error) { return 3, nil })

	_, err := svc.ProcessPDFWithMetadata(context.Background(), writeFakePDF(t))
	if err == nil {
		t.Fatal("expected error when every page fails")
	}
	if errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, should not be ErrEmptyDocument", err)
	}
	if !errors.Is(err, missing) {
		t.Errorf("err = %v, want the page error", err)
	}
}

func TestTesseract_InvalidHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}
	svc := NewTesseractOCRServiceWithRunner(DefaultTesseractConfig(), nil, nil)

	_, err := svc.ProcessPDF(context.Background(), path)
	if !errors.Is(err, ErrInvalidPDF) {
		t.Fatalf("err = %v, want ErrInvalidPDF", err)
	}
	var ocrErr *OCRError
	if !errors.As(err, &ocrErr) || ocrErr.Op != "ProcessPDFWithMetadata" {
		t.Errorf("expected OCRError with op, got %#v", err)
	}
}

type fakeAnnotator struct {
	resp *visionpb.BatchAnnotateFilesResponse
	req  *visionpb.BatchAnnotateFilesRequest
}

func (f *fakeAnnotator) BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error) {
	f.req = req
	return f.resp, nil
}

func TestVision_AnnotatePart(t *testing.T) {
	page := func(text string, conf float32) *visionpb.AnnotateImageResponse {
		return &visionpb.AnnotateImageResponse{
			FullTextAnnotation: &visionpb.TextAnnotation{
				Text: text,
				Pages: []*visionpb.Page{{
					Confidence: conf,
					Property: &visionpb.TextAnnotation_TextProperty{
						DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{{LanguageCode: "vi"}},
					},
				}},
			},
		}
	}
	client := &fakeAnnotator{resp: &visionpb.BatchAnnotateFilesResponse{
		Responses: []*visionpb.AnnotateFileResponse{{
			Responses: []*visionpb.AnnotateImageResponse{page("một", 0.8), page("hai", 0.6)},
		}},
	}}

	svc := NewGoogleVisionOCRServiceWithClient(client, []string{"vi"})
	acc := newPageAccumulator()
	if err := svc.annotatePart(context.Background(), []byte("%PDF"), acc); err != nil {
		t.Fatalf("annotatePart: %v", err)
	}

	if hints := client.req.Requests[0].ImageContext.LanguageHints; len(hints) != 1 || hints[0] != "vi" {
		t.Errorf("language hints = %v", hints)
	}

	result, err := acc.result(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "một\n\nhai\n\n" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.Confidence < 0.69 || result.Confidence > 0.71 {
		t.Errorf("Confidence = %v, want 0.7", result.Confidence)
	}
	if strings.Join(result.LanguageCodes, ",") != "vi" {
		t.Errorf("LanguageCodes = %v", result.LanguageCodes)
	}
}

func TestVision_NoResponse(t *testing.T) {
	client := &fakeAnnotator{resp: &visionpb.BatchAnnotateFilesResponse{}}
	svc := NewGoogleVisionOCRServiceWithClient(client, nil)
	err := svc.annotatePart(context.Background(), []byte("%PDF"), newPageAccumulator())
	if !errors.Is(err, ErrOCRFailed) {
		t.Fatalf("err = %v, want ErrOCRFailed", err)
	}
}

func TestAddDocumentPages(t *testing.T) {
	text := "Chương một\nNội dung ở trang hai"
	runes := []rune(text)
	split := int64(len([]rune("Chương một\n")))

	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{
			{
				Layout: &documentaipb.Document_Page_Layout{
					Confidence: 0.9,
					TextAnchor: &documentaipb.Document_TextAnchor{
						TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: 0, EndIndex: split}},
					},
				},
				DetectedLanguages: []*documentaipb.Document_Page_DetectedLanguage{{LanguageCode: "vi"}},
			},
			{
				Layout: &documentaipb.Document_Page_Layout{
					TextAnchor: &documentaipb.Document_TextAnchor{
						TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: split, EndIndex: int64(len(runes)) + 10}},
					},
				},
			},
		},
	}

	acc := newPageAccumulator()
	addDocumentPages(acc, doc)

	if len(acc.pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(acc.pages))
	}
	if acc.pages[0] != "Chương một\n" || acc.pages[1] != "Nội dung ở trang hai" {
		t.Errorf("pages = %q", acc.pages)
	}
	if acc.confidenceCount != 1 {
		t.Errorf("confidenceCount = %d, want 1", acc.confidenceCount)
	}
}

func TestDocumentAI_ProcessorName(t *testing.T) {
	svc := NewDocumentAIOCRServiceWithClient(DocumentAIConfig{ProjectID: "p", Location: "eu", ProcessorID: "x"}, nil)
	if got := svc.processorName(); got != "projects/p/locations/eu/processors/x" {
		t.Errorf("processorName = %s", got)
	}
}
