package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"catalog-service/internal/models"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const (
	utf8BOM = "\ufeff"

	// BIFF8 worksheets have at most 256 columns
	xlsMaxColumns = 256
)

var zipMagic = []byte("PK\x03\x04")

// FileIngestor turns an uploaded spreadsheet into raw rows. It only reads the
// file; removing it is up to the caller.
type FileIngestor struct{}

func NewFileIngestor() *FileIngestor {
	return &FileIngestor{}
}

// Ingest reads path according to its extension (".csv", ".xlsx" or ".xls")
func (fi *FileIngestor) Ingest(ctx context.Context, path, ext string) ([]models.RawRow, error) {
	switch models.ImportFormat(strings.TrimPrefix(strings.ToLower(ext), ".")) {
	case models.ImportFormatCSV:
		return fi.ingestCSV(ctx, path)
	case models.ImportFormatXLSX:
		return fi.ingestExcel(ctx, path)
	case models.ImportFormatXLS:
		return fi.ingestXLS(ctx, path)
	default:
		return nil, &UnsupportedFormatError{Extension: ext}
	}
}

// ingestCSV streams the file record by record; the first record is the header
func (fi *FileIngestor) ingestCSV(ctx context.Context, path string) ([]models.RawRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IngestError{Err: err}
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	if r, _, err := buffered.ReadRune(); err == nil && r != '\ufeff' {
		_ = buffered.UnreadRune()
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1 // rows may be ragged

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.RawRow{}, nil
	}
	if err != nil {
		return nil, &IngestError{Err: fmt.Errorf("failed to read CSV header: %w", err)}
	}
	columns := headerColumns(header)

	rows := make([]models.RawRow, 0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, &IngestError{Err: err}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &IngestError{Err: fmt.Errorf("error reading line %d: %w", len(rows)+2, err)}
		}
		rows = append(rows, newRawRow(len(rows), columns, record))
	}

	return rows, nil
}

// ingestExcel loads the first worksheet in full
func (fi *FileIngestor) ingestExcel(ctx context.Context, path string) ([]models.RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &IngestError{Err: fmt.Errorf("failed to open Excel file: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &IngestError{Err: errors.New("no sheets found in Excel file")}
	}

	excelRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &IngestError{Err: fmt.Errorf("failed to read sheet: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &IngestError{Err: err}
	}
	if len(excelRows) == 0 {
		return []models.RawRow{}, nil
	}

	return gridRows(excelRows), nil
}

// ingestXLS reads the first worksheet of a legacy BIFF workbook. Files that
// are really OOXML under an .xls name go through excelize instead.
func (fi *FileIngestor) ingestXLS(ctx context.Context, path string) ([]models.RawRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IngestError{Err: err}
	}
	defer file.Close()

	magic := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(file, magic); err == nil && bytes.Equal(magic, zipMagic) {
		return fi.ingestExcel(ctx, path)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, &IngestError{Err: err}
	}

	grid, err := readXLSGrid(file)
	if err != nil {
		return nil, &IngestError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &IngestError{Err: err}
	}
	if len(grid) == 0 {
		return []models.RawRow{}, nil
	}

	return gridRows(grid), nil
}

// readXLSGrid returns the first sheet as rows of cells, shaped like excelize
// GetRows: missing rows are empty and trailing blank cells are cut.
func readXLSGrid(r io.ReadSeeker) (grid [][]string, err error) {
	// the BIFF reader panics on some malformed streams
	defer func() {
		if rec := recover(); rec != nil {
			grid, err = nil, fmt.Errorf("failed to parse Excel 97-2003 file: %v", rec)
		}
	}()

	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	if book == nil || book.NumSheets() == 0 {
		return nil, errors.New("no sheets found in Excel file")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("no sheets found in Excel file")
	}

	grid = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			grid = append(grid, []string{})
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < xlsMaxColumns; j++ {
			cells = append(cells, row.Col(j))
		}
		end := len(cells)
		for end > 0 && cells[end-1] == "" {
			end--
		}
		grid = append(grid, cells[:end])
	}

	// a sheet with no cells still reports row 0
	if len(grid) == 1 && len(grid[0]) == 0 {
		return [][]string{}, nil
	}
	return grid, nil
}

// xlsRow returns nil for rows the sheet does not define
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// gridRows treats the first row as the header
func gridRows(grid [][]string) []models.RawRow {
	columns := headerColumns(grid[0])
	rows := make([]models.RawRow, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		rows = append(rows, newRawRow(len(rows), columns, cells))
	}
	return rows
}

// headerColumns normalizes header cells. Blank trailing header cells are
// dropped so values beneath them count as cells beyond the header.
func headerColumns(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		columns[i] = models.NormalizeColumn(h)
	}
	end := len(columns)
	for end > 0 && columns[end-1] == "" {
		end--
	}
	return columns[:end]
}

func newRawRow(index int, columns, cells []string) models.RawRow {
	return models.RawRow{
		Number:  index + 2,
		Columns: columns,
		Cells:   append([]string(nil), cells...),
	}
}
