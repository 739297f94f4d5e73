package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"corpus/internal/ocr"
	"corpus/pkg/models"
)

type fakeTextLayer struct {
	pages []string
	err   error
}

func (f fakeTextLayer) Pages(ctx context.Context, path string) ([]string, error) {
	return f.pages, f.err
}

type fakeOCR struct {
	calls  int
	result *ocr.OCRResult
	err    error
}

func (f *fakeOCR) ProcessPDF(ctx context.Context, path string) (string, error) {
	r, err := f.ProcessPDFWithMetadata(ctx, path)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

func (f *fakeOCR) ProcessPDFWithMetadata(ctx context.Context, path string) (*ocr.OCRResult, error) {
	f.calls++
	return f.result, f.err
}

func tempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "giao_trinh.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract_TextLayer(t *testing.T) {
	o := &fakeOCR{}
	e := NewWithDeps(fakeTextLayer{pages: []string{"Trang một", "", "Trang ba\n"}}, o)

	doc, err := e.Extract(context.Background(), tempPDF(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if o.calls != 0 {
		t.Errorf("OCR called %d times, want 0", o.calls)
	}
	if doc.Source != models.SourceTextLayer {
		t.Errorf("Source = %s", doc.Source)
	}
	if doc.RawText != "Trang một\n\nTrang ba" {
		t.Errorf("RawText = %q", doc.RawText)
	}
	if doc.Name != "giao_trinh.pdf" {
		t.Errorf("Name = %q", doc.Name)
	}
}

func TestExtract_OCRFallback(t *testing.T) {
	tests := []struct {
		name      string
		pages     []string
		layerErr  error
		wantCalls int
	}{
		{"no pages", nil, nil, 1},
		{"whitespace only", []string{"  ", "\n\t"}, nil, 1},
		{"unreadable layer", nil, errors.New("malformed xref"), 1},
		{"one page of text", []string{"", "x"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOCR{result: &ocr.OCRResult{
				Text:  "Chương một\n\nNội dung\n\n",
				Pages: []string{"Chương một", "Nội dung"},
			}}
			e := NewWithDeps(fakeTextLayer{pages: tt.pages, err: tt.layerErr}, o)

			doc, err := e.Extract(context.Background(), tempPDF(t))
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if o.calls != tt.wantCalls {
				t.Fatalf("OCR called %d times, want %d", o.calls, tt.wantCalls)
			}
			if tt.wantCalls == 1 {
				if doc.Source != models.SourceOCR || doc.RawText != "Chương một\n\nNội dung" {
					t.Errorf("doc = %+v", doc)
				}
			}
		})
	}
}

func TestExtract_NFC(t *testing.T) {
	decomposed := "Vi\u0065\u0323\u0302t" // e, dot below, circumflex
	e := NewWithDeps(fakeTextLayer{pages: []string{decomposed}}, nil)

	doc, err := e.Extract(context.Background(), tempPDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if doc.RawText != "Vi\u1ec7t" {
		t.Errorf("RawText = %q, want precomposed", doc.RawText)
	}
}

func TestExtract_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		o := &fakeOCR{}
		e := NewWithDeps(fakeTextLayer{}, o)
		_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
		if !errors.Is(err, ErrDocumentNotFound) {
			t.Fatalf("err = %v, want ErrDocumentNotFound", err)
		}
		if o.calls != 0 {
			t.Error("OCR must not run for a missing file")
		}
	})

	t.Run("ocr finds nothing", func(t *testing.T) {
		o := &fakeOCR{err: &ocr.OCRError{Op: "ProcessPDFWithMetadata", Err: ocr.ErrEmptyDocument}}
		e := NewWithDeps(fakeTextLayer{}, o)
		_, err := e.Extract(context.Background(), tempPDF(t))
		if !errors.Is(err, ErrNoContent) {
			t.Fatalf("err = %v, want ErrNoContent", err)
		}
	})

	t.Run("ocr disabled", func(t *testing.T) {
		e := NewWithDeps(fakeTextLayer{pages: []string{" "}}, nil)
		_, err := e.Extract(context.Background(), tempPDF(t))
		if !errors.Is(err, ErrNoContent) {
			t.Fatalf("err = %v, want ErrNoContent", err)
		}
	})

	t.Run("ocr failure keeps cause", func(t *testing.T) {
		o := &fakeOCR{err: ocr.ErrEngineUnavailable}
		e := NewWithDeps(fakeTextLayer{}, o)
		_, err := e.Extract(context.Background(), tempPDF(t))
		if !errors.Is(err, ocr.ErrEngineUnavailable) {
			t.Fatalf("err = %v, want ErrEngineUnavailable", err)
		}
		var extractErr *ExtractError
		if !errors.As(err, &extractErr) || extractErr.Op != "Extract" {
			t.Errorf("expected ExtractError, got %T", err)
		}
	})
}
