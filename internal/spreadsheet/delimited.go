package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	candidateDelimiters = []rune{',', ';', '\t', '|'}
)

func parseDelimited(payload []byte, opts Options) (Table, error) {
	text, encodingName, err := decodeText(payload)
	if err != nil {
		return Table{}, err
	}

	delimiter := sniffDelimiter(text)
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to read delimited text: %v", ErrUnreadableFile, err)
	}

	table, err := buildTable(records, opts.HeaderRow)
	if err != nil {
		return Table{}, err
	}
	table.Format = FormatDelimited
	table.Encoding = encodingName
	table.Delimiter = string(delimiter)
	return table, nil
}

// decodeText strips a UTF-8 byte order mark, or converts legacy single byte encodings to UTF-8.
func decodeText(payload []byte) (string, string, error) {
	if bytes.HasPrefix(payload, byteOrderMark) {
		return string(payload[len(byteOrderMark):]), "UTF-8", nil
	}
	if utf8.Valid(payload) {
		return string(payload), "UTF-8", nil
	}

	charset := "windows-1252"
	if result, err := chardet.NewTextDetector().DetectBest(payload); err == nil && result != nil {
		charset = result.Charset
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(payload), decoderFor(charset).NewDecoder()))
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to decode %s text: %v", ErrUnreadableFile, charset, err)
	}
	return string(decoded), charset, nil
}

func decoderFor(charset string) encoding.Encoding {
	switch strings.ToUpper(charset) {
	case "ISO-8859-15":
		return charmap.ISO8859_15
	case "ISO-8859-1":
		return charmap.ISO8859_1
	default:
		// chardet reports UTF-8 or unrelated multibyte sets for short Latin-1 samples.
		return charmap.Windows1252
	}
}

// sniffDelimiter picks the candidate that splits the leading lines into the most
// consistent, widest set of fields.
func sniffDelimiter(text string) rune {
	lines := make([]string, 0, 10)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 10 {
			break
		}
	}

	best := ','
	bestScore := 0
	for _, candidate := range candidateDelimiters {
		counts := make(map[int]int)
		for _, line := range lines {
			counts[strings.Count(line, string(candidate))]++
		}
		score := 0
		for fields, occurrences := range counts {
			if fields == 0 {
				continue
			}
			if weighted := occurrences * (fields + 1); weighted > score {
				score = weighted
			}
		}
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}
