package ocr

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// relaxedConfig tolerates the minor structural defects common in scanned textbooks.
func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	const op = "PageCount"

	f, err := os.Open(path)
	if err != nil {
		return 0, WrapOCRError(op, err, "failed to open PDF")
	}
	defer f.Close()

	n, err := api.PageCount(f, relaxedConfig())
	if err != nil {
		return 0, WrapOCRError(op, ErrInvalidPDF, err.Error())
	}
	return n, nil
}

// pageRanges splits 1..pageCount into consecutive ranges of at most size pages,
// in the "first-last" form pdfcpu page selections use.
func pageRanges(pageCount, size int) []string {
	if pageCount <= 0 || size <= 0 {
		return nil
	}
	var ranges []string
	for first := 1; first <= pageCount; first += size {
		last := first + size - 1
		if last > pageCount {
			last = pageCount
		}
		ranges = append(ranges, fmt.Sprintf("%d-%d", first, last))
	}
	return ranges
}

// splitPDF cuts pdfBytes into parts of at most size pages each, in page order.
// A document that already fits is returned as a single part.
func splitPDF(pdfBytes []byte, size int) ([][]byte, error) {
	const op = "splitPDF"

	conf := relaxedConfig()
	pageCount, err := api.PageCount(bytes.NewReader(pdfBytes), conf)
	if err != nil {
		return nil, WrapOCRError(op, ErrInvalidPDF, err.Error())
	}
	if pageCount <= size {
		return [][]byte{pdfBytes}, nil
	}

	var parts [][]byte
	for _, selection := range pageRanges(pageCount, size) {
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(pdfBytes), &buf, []string{selection}, conf); err != nil {
			return nil, WrapOCRError(op, err, fmt.Sprintf("failed to extract pages %s", selection))
		}
		parts = append(parts, buf.Bytes())
	}
	return parts, nil
}

// readPDF loads a PDF file and checks its header.
func readPDF(op, path string) ([]byte, error) {
	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}
	return pdfBytes, nil
}
