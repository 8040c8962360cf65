package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

func parseWorkbook(payload []byte, opts Options) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrUnreadableFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyWorkbook
	}

	var (
		sheet string
		rows  [][]string
	)
	if opts.Sheet != "" {
		if idx, _ := f.GetSheetIndex(opts.Sheet); idx < 0 {
			return Table{}, fmt.Errorf("%w: %q", ErrSheetNotFound, opts.Sheet)
		}
		sheet = opts.Sheet
		rows, err = readRows(f, sheet)
		if err != nil {
			return Table{}, err
		}
	} else {
		for _, name := range sheets {
			candidate, err := readRows(f, name)
			if err != nil {
				return Table{}, err
			}
			if hasData(candidate) {
				sheet = name
				rows = candidate
				break
			}
		}
		if sheet == "" {
			return Table{}, fmt.Errorf("%w: every sheet is empty", ErrEmptySheet)
		}
	}

	table, err := buildTable(rows, opts.HeaderRow)
	if err != nil {
		return Table{}, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	table.Format = FormatXLSX
	table.Sheet = sheet
	table.Sheets = sheets
	return table, nil
}

// readRows returns raw cell values so dates surface as Excel serial numbers rather
// than locale formatted strings.
func readRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows from sheet %q: %v", ErrUnreadableFile, sheet, err)
	}
	return rows, nil
}

func hasData(rows [][]string) bool {
	for _, row := range rows {
		if !isBlank(row) {
			return true
		}
	}
	return false
}
