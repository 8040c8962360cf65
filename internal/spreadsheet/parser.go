// Package spreadsheet turns uploaded workbooks and delimited text files into a
// rectangular table with a detected header row.
package spreadsheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes bounds the size of an uploaded file.
const DefaultMaxBytes int64 = 10 << 20

var (
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrFileTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrUnreadableFile      = errors.New("file could not be read")
	ErrEmptyWorkbook       = errors.New("workbook contains no sheets")
	ErrEmptySheet          = errors.New("sheet contains no data")
	ErrSheetNotFound       = errors.New("sheet not found")
	ErrHeaderRowOutOfRange = errors.New("header row out of range")
)

// Format identifies how a payload was decoded.
type Format string

const (
	FormatXLSX      Format = "xlsx"
	FormatDelimited Format = "csv"
)

// Options tune a single Parse call.
type Options struct {
	MaxBytes  int64
	Sheet     string
	HeaderRow *int
}

// Row is a data row with its 1-based position in the source sheet.
type Row struct {
	Number int      `json:"row_number"`
	Values []string `json:"values"`
}

// HeaderCandidate is a non-empty leading row offered as a possible header.
type HeaderCandidate struct {
	Index   int      `json:"index"`
	Values  []string `json:"values"`
	Current bool     `json:"current"`
}

// Table is the parsed content of one sheet.
type Table struct {
	Format           Format            `json:"format"`
	Sheet            string            `json:"sheet,omitempty"`
	Sheets           []string          `json:"sheets,omitempty"`
	Encoding         string            `json:"encoding,omitempty"`
	Delimiter        string            `json:"delimiter,omitempty"`
	HeaderRowIndex   int               `json:"header_row_index"`
	Headers          []string          `json:"headers"`
	Rows             []Row             `json:"rows"`
	HeaderCandidates []HeaderCandidate `json:"header_candidates"`
}

// Column returns every value of the column at idx in row order.
func (t Table) Column(idx int) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row.Values) {
			values = append(values, row.Values[idx])
		}
	}
	return values
}

// Parse decodes payload according to its file name and content.
func Parse(name string, payload []byte, opts Options) (Table, error) {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(payload)) > maxBytes {
		return Table{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(payload), maxBytes)
	}
	if len(payload) == 0 {
		return Table{}, fmt.Errorf("%w: %s is empty", ErrEmptySheet, name)
	}

	format, err := detectFormat(name, payload)
	if err != nil {
		return Table{}, err
	}

	switch format {
	case FormatXLSX:
		return parseWorkbook(payload, opts)
	default:
		return parseDelimited(payload, opts)
	}
}

func detectFormat(name string, payload []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	detected := mimetype.Detect(payload)
	zipped := isZip(detected)

	switch ext {
	case ".xlsx", ".xlsm":
		if !zipped {
			return "", fmt.Errorf("%w: %s is not a valid workbook (%s)", ErrUnreadableFile, name, detected.String())
		}
		return FormatXLSX, nil
	case ".csv", ".txt", ".tsv":
		if zipped {
			return FormatXLSX, nil
		}
		if !isText(detected) {
			return "", fmt.Errorf("%w: %s content is %s", ErrUnsupportedFormat, name, detected.String())
		}
		return FormatDelimited, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func isZip(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
