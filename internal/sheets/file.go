package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"corpus/internal/logger"
)

const defaultSheetName = "Sheet1"

// ErrCellTooLong is returned when a value exceeds the xlsx cell limit of
// excelize.TotalCellChars characters. excelize would otherwise cut it short.
var ErrCellTooLong = errors.New("cell exceeds xlsx length limit")

// FileStore keeps tables in local .xlsx workbooks.
type FileStore struct {
	log zerolog.Logger
}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{log: logger.WithComponent("sheets-file")}
}

// Read loads the first worksheet of the workbook at path. Short rows are
// padded to the header width.
func (s *FileStore) Read(ctx context.Context, path string) (*Table, error) {
	const op = "FileStore.Read"

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", op, path, err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("%s: %s has no worksheets", op, path)
	}
	sheet := sheetList[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %s: %w", op, sheet, err)
	}

	table := &Table{Name: sheet}
	if len(rows) == 0 {
		return table, nil
	}
	table.Header = rows[0]
	for _, r := range rows[1:] {
		values := make([]interface{}, len(table.Header))
		for i := range values {
			values[i] = ""
			if i < len(r) {
				values[i] = r[i]
			}
		}
		table.Rows = append(table.Rows, values)
	}

	s.log.Debug().
		Str("file", path).
		Str("sheet", sheet).
		Int("rows", len(table.Rows)).
		Msg("Read workbook")

	return table, nil
}

// Write replaces any workbook at path with a single sheet holding table.
// The header row is bold. A table with a value longer than an xlsx cell can
// hold is rejected with ErrCellTooLong before anything is written.
func (s *FileStore) Write(ctx context.Context, path string, table *Table) error {
	const op = "FileStore.Write"

	if err := checkCellLengths(table); err != nil {
		s.log.Error().
			Err(err).
			Str("file", path).
			Msg("Table does not fit in a workbook")
		return fmt.Errorf("%s: %w", op, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%s: create directory: %w", op, err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(table.Name)
	if sheet != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, sheet); err != nil {
			return fmt.Errorf("%s: name sheet: %w", op, err)
		}
	}

	header := make([]interface{}, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s: write header: %w", op, err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("%s: write row %d: %w", op, i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		err = f.SetRowStyle(sheet, 1, 1, bold)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%s: save %s: %w", op, path, err)
	}

	s.log.Info().
		Str("file", path).
		Int("rows", len(table.Rows)).
		Msg("Wrote workbook")

	return nil
}

// checkCellLengths reports the first header or row value that excelize would truncate.
func checkCellLengths(table *Table) error {
	for j, h := range table.Header {
		if n := utf8.RuneCountInString(h); n > excelize.TotalCellChars {
			return fmt.Errorf("header column %d has %d characters: %w", j+1, n, ErrCellTooLong)
		}
	}
	for i, row := range table.Rows {
		for j, v := range row {
			str, ok := v.(string)
			if !ok {
				continue
			}
			if n := utf8.RuneCountInString(str); n > excelize.TotalCellChars {
				column := fmt.Sprintf("%d", j+1)
				if j < len(table.Header) {
					column = table.Header[j]
				}
				return fmt.Errorf("row %d column %q has %d characters, limit %d: %w",
					i+1, column, n, excelize.TotalCellChars, ErrCellTooLong)
			}
		}
	}
	return nil
}

// sheetName makes name a valid worksheet name: at most 31 characters, none of :\/?*[].
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return defaultSheetName
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}
