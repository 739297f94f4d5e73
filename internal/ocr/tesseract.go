package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"corpus/internal/logger"
)

// TesseractConfig holds the settings of the local OCR engine.
type TesseractConfig struct {
	Language     string // tesseract language pack, e.g. "vie"
	EngineMode   int    // --oem
	PageSegMode  int    // --psm
	DPI          int    // rendering resolution
	TesseractBin string
	PdftoppmBin  string
}

// DefaultTesseractConfig returns the Vietnamese textbook settings.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Language:     "vie",
		EngineMode:   3,
		PageSegMode:  6,
		DPI:          300,
		TesseractBin: "tesseract",
		PdftoppmBin:  "pdftoppm",
	}
}

// CommandRunner runs an external program and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// TesseractOCRService implements OCRService with poppler and the tesseract CLI.
type TesseractOCRService struct {
	config    TesseractConfig
	run       CommandRunner
	pageCount func(path string) (int, error)
	log       zerolog.Logger
}

// NewTesseractOCRService creates the local OCR engine, failing when either binary is missing.
func NewTesseractOCRService(config TesseractConfig) (OCRService, error) {
	const op = "NewTesseractOCRService"

	config = withTesseractDefaults(config)
	for _, bin := range []string{config.TesseractBin, config.PdftoppmBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, WrapOCRError(op, ErrEngineUnavailable, bin)
		}
	}

	return NewTesseractOCRServiceWithRunner(config, execRunner, PageCount), nil
}

// NewTesseractOCRServiceWithRunner creates the engine with explicit collaborators (for testing).
func NewTesseractOCRServiceWithRunner(config TesseractConfig, run CommandRunner, pageCount func(string) (int, error)) *TesseractOCRService {
	return &TesseractOCRService{
		config:    withTesseractDefaults(config),
		run:       run,
		pageCount: pageCount,
		log:       logger.WithComponent("ocr-tesseract"),
	}
}

func withTesseractDefaults(config TesseractConfig) TesseractConfig {
	def := DefaultTesseractConfig()
	if config.Language == "" {
		config.Language = def.Language
	}
	if config.DPI <= 0 {
		config.DPI = def.DPI
	}
	if config.TesseractBin == "" {
		config.TesseractBin = def.TesseractBin
	}
	if config.PdftoppmBin == "" {
		config.PdftoppmBin = def.PdftoppmBin
	}
	return config
}

// ProcessPDF extracts text from a PDF document.
func (t *TesseractOCRService) ProcessPDF(ctx context.Context, pdfPath string) (string, error) {
	result, err := t.ProcessPDFWithMetadata(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessPDFWithMetadata renders and recognises every page in order.
// A page that fails to recognise contributes empty text. When every page fails
// the last page error is returned; when pages run but yield no text the result
// is ErrEmptyDocument.
func (t *TesseractOCRService) ProcessPDFWithMetadata(ctx context.Context, pdfPath string) (*OCRResult, error) {
	const op = "ProcessPDFWithMetadata"
	startTime := time.Now()

	if _, err := readPDF(op, pdfPath); err != nil {
		return nil, err
	}

	pageCount, err := t.pageCount(pdfPath)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to count pages")
	}

	workDir, err := os.MkdirTemp("", "corpus-ocr-*")
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create work directory")
	}
	defer os.RemoveAll(workDir)

	t.log.Debug().
		Str("file", pdfPath).
		Int("pages", pageCount).
		Str("language", t.config.Language).
		Msg("Starting local OCR")

	pages := make([]string, pageCount)
	var (
		failed  int
		lastErr error
	)
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, WrapOCRError(op, err, fmt.Sprintf("cancelled at page %d", page))
		}

		text, err := t.recognizePage(ctx, pdfPath, workDir, page)
		if err != nil {
			t.log.Warn().
				Err(err).
				Str("file", pdfPath).
				Int("page", page).
				Msg("Page recognition failed")
			failed++
			lastErr = err
			continue
		}
		pages[page-1] = text
	}
	if pageCount > 0 && failed == pageCount {
		return nil, fmt.Errorf("%s: all %d pages of %s failed: %w", op, pageCount, filepath.Base(pdfPath), lastErr)
	}

	result, err := newResult(pages, startTime)
	if err != nil {
		return nil, WrapOCRError(op, err, filepath.Base(pdfPath))
	}
	result.LanguageCodes = []string{t.config.Language}

	t.log.Info().
		Str("file", pdfPath).
		Int("pages", result.PageCount).
		Dur("duration", result.ProcessingDuration).
		Msg("Local OCR completed")

	return result, nil
}

func (t *TesseractOCRService) recognizePage(ctx context.Context, pdfPath, workDir string, page int) (string, error) {
	prefix := filepath.Join(workDir, fmt.Sprintf("page-%04d", page))
	if _, err := t.run(ctx, t.config.PdftoppmBin, t.renderArgs(pdfPath, prefix, page)...); err != nil {
		return "", WrapOCRError("RenderPage", err, fmt.Sprintf("page %d", page))
	}
	image := prefix + ".png"
	defer os.Remove(image)

	out, err := t.run(ctx, t.config.TesseractBin, t.recognizeArgs(image)...)
	if err != nil {
		return "", WrapOCRError("RecognizePage", err, fmt.Sprintf("page %d", page))
	}
	return string(out), nil
}

// renderArgs renders a single page to <prefix>.png.
func (t *TesseractOCRService) renderArgs(pdfPath, prefix string, page int) []string {
	n := strconv.Itoa(page)
	return []string{
		"-f", n, "-l", n,
		"-r", strconv.Itoa(t.config.DPI),
		"-png", "-singlefile",
		pdfPath, prefix,
	}
}

// recognizeArgs writes the recognised text of image to stdout.
func (t *TesseractOCRService) recognizeArgs(image string) []string {
	return []string{
		image, "stdout",
		"-l", t.config.Language,
		"--oem", strconv.Itoa(t.config.EngineMode),
		"--psm", strconv.Itoa(t.config.PageSegMode),
	}
}
