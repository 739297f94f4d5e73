package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"corpus/internal/config"
	"corpus/internal/ocr"
)

func TestCollectPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0755); err != nil {
		t.Fatal(err)
	}
	single := filepath.Join(t.TempDir(), "missing.pdf")

	got, err := collectPDFs([]string{dir, single}, &config.Config{})
	if err != nil {
		t.Fatalf("collectPDFs: %v", err)
	}
	want := []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf"), single}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectPDFs_InputPath(t *testing.T) {
	got, err := collectPDFs(nil, &config.Config{InputPath: "book.pdf"})
	if err != nil || len(got) != 1 || got[0] != "book.pdf" {
		t.Errorf("got %v, %v", got, err)
	}
	if _, err := collectPDFs(nil, &config.Config{}); err == nil {
		t.Error("expected error without inputs")
	}
}

func TestCreateOCRService_None(t *testing.T) {
	service, closeFn, err := createOCRService(t.Context(), &config.Config{OCRProvider: config.OCRProviderNone}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if service != nil {
		t.Errorf("service = %T, want untyped nil", service)
	}
}

func TestPipelineOCRService_EngineMissing(t *testing.T) {
	t.Setenv("PATH", "")
	conf := &config.Config{OCRProvider: config.OCRProviderTesseract, OCRLanguage: "vie"}

	_, _, err := createOCRService(t.Context(), conf, zerolog.Nop())
	if !errors.Is(err, ocr.ErrEngineUnavailable) {
		t.Fatalf("createOCRService err = %v, want ErrEngineUnavailable", err)
	}

	service, closeFn, err := createPipelineOCRService(t.Context(), conf, zerolog.Nop())
	if err != nil {
		t.Fatalf("createPipelineOCRService: %v", err)
	}
	defer closeFn()
	if service != nil {
		t.Errorf("service = %T, want untyped nil", service)
	}
}

func TestPipelineOCRService_OtherErrorsSurface(t *testing.T) {
	conf := &config.Config{OCRProvider: config.OCRProviderDocumentAI}

	if _, _, err := createPipelineOCRService(t.Context(), conf, zerolog.Nop()); err == nil {
		t.Error("expected configuration error for Document AI without a processor")
	}
}
