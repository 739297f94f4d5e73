package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"corpus/internal/logger"
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	sheetGIDPattern      = regexp.MustCompile(`[#&?]gid=(\d+)`)
)

// IsSpreadsheetURL reports whether location names a Google Sheets document.
func IsSpreadsheetURL(location string) bool {
	return spreadsheetIDPattern.MatchString(location)
}

// GoogleStore keeps tables in Google Sheets. A location is a spreadsheet URL;
// a gid fragment selects the worksheet, otherwise the table name (or the
// first worksheet when reading) is used.
type GoogleStore struct {
	sheetsService *sheets.Service
	log           zerolog.Logger
}

// NewGoogleStore creates a Sheets client from GOOGLE_APPLICATION_CREDENTIALS
// or GOOGLE_CREDENTIALS.
func NewGoogleStore(ctx context.Context) (*GoogleStore, error) {
	const op = "NewGoogleStore"

	var creds []byte
	var err error
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &GoogleStore{
		sheetsService: sheetsService,
		log:           logger.WithComponent("sheets-google"),
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// extractSheetGID returns the worksheet id of a URL's gid parameter.
func extractSheetGID(url string) (int64, bool) {
	matches := sheetGIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return 0, false
	}
	gid, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return gid, true
}

// Read loads the selected worksheet. Short rows are padded to the header width.
func (s *GoogleStore) Read(ctx context.Context, location string) (*Table, error) {
	const op = "GoogleStore.Read"

	spreadsheetID, err := extractSpreadsheetID(location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}
	if len(spreadsheet.Sheets) == 0 {
		return nil, fmt.Errorf("%s: spreadsheet has no worksheets", op)
	}

	title := spreadsheet.Sheets[0].Properties.Title
	if gid, ok := extractSheetGID(location); ok {
		for _, sheet := range spreadsheet.Sheets {
			if sheet.Properties.SheetId == gid {
				title = sheet.Properties.Title
				break
			}
		}
	}

	resp, err := s.sheetsService.Spreadsheets.Values.Get(spreadsheetID, quoteSheet(title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %s: %w", op, title, err)
	}

	table := tableFromValues(title, resp.Values)

	s.log.Debug().
		Str("spreadsheet_id", spreadsheetID).
		Str("sheet", title).
		Int("rows", len(table.Rows)).
		Msg("Read sheet")

	return table, nil
}

// Write clears the worksheet and writes header and rows, creating the
// worksheet when it does not exist.
func (s *GoogleStore) Write(ctx context.Context, location string, table *Table) error {
	const op = "GoogleStore.Write"

	spreadsheetID, err := extractSpreadsheetID(location)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	title, sheetID, err := s.ensureSheet(ctx, spreadsheetID, location, sheetName(table.Name))
	if err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	_, err = s.sheetsService.Spreadsheets.Values.Clear(spreadsheetID, quoteSheet(title), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to clear sheet: %w", op, err)
	}

	valueRange := &sheets.ValueRange{Values: valuesFromTable(table)}
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		spreadsheetID,
		quoteSheet(title)+"!A1",
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to write values: %w", op, err)
	}

	if err := s.formatHeaders(ctx, spreadsheetID, sheetID, len(table.Header)); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}

	s.log.Info().
		Str("spreadsheet_id", spreadsheetID).
		Str("sheet", title).
		Int("rows_written", len(table.Rows)).
		Msg("Successfully wrote table to Google Sheet")

	return nil
}

// ensureSheet resolves the target worksheet: the URL's gid if present, else
// the worksheet titled name, created when missing.
func (s *GoogleStore) ensureSheet(ctx context.Context, spreadsheetID, location, name string) (string, int64, error) {
	const op = "ensureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	gid, hasGID := extractSheetGID(location)
	for _, sheet := range spreadsheet.Sheets {
		if (hasGID && sheet.Properties.SheetId == gid) || (!hasGID && sheet.Properties.Title == name) {
			return sheet.Properties.Title, sheet.Properties.SheetId, nil
		}
	}
	if hasGID {
		return "", 0, fmt.Errorf("%s: no worksheet with gid %d", op, gid)
	}

	s.log.Info().Str("sheet", name).Msg("Creating new sheet")

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}}},
		},
	}
	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}
	return name, resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// formatHeaders makes the header row bold and resizes the columns
func (s *GoogleStore) formatHeaders(ctx context.Context, spreadsheetID string, sheetID int64, columns int) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}

func quoteSheet(title string) string {
	return "'" + title + "'"
}

func tableFromValues(title string, values [][]interface{}) *Table {
	table := &Table{Name: title}
	if len(values) == 0 {
		return table
	}
	for _, h := range values[0] {
		table.Header = append(table.Header, fmt.Sprint(h))
	}
	for _, r := range values[1:] {
		row := make([]interface{}, len(table.Header))
		for i := range row {
			row[i] = ""
			if i < len(r) {
				row[i] = fmt.Sprint(r[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func valuesFromTable(table *Table) [][]interface{} {
	values := make([][]interface{}, 0, len(table.Rows)+1)
	header := make([]interface{}, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	values = append(values, header)
	values = append(values, table.Rows...)
	return values
}
