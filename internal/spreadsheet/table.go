package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	headerScanLimit      = 20
	headerCandidateLimit = 10
	headerTextRatio      = 0.6
)

func buildTable(records [][]string, headerRow *int) (Table, error) {
	if !hasData(records) {
		return Table{}, ErrEmptySheet
	}

	headerIndex := -1
	if headerRow != nil {
		if *headerRow < 0 || *headerRow >= len(records) {
			return Table{}, fmt.Errorf("%w: %d (sheet has %d rows)", ErrHeaderRowOutOfRange, *headerRow, len(records))
		}
		if isBlank(records[*headerRow]) {
			return Table{}, fmt.Errorf("%w: selected header row %d is empty", ErrHeaderRowOutOfRange, *headerRow+1)
		}
		headerIndex = *headerRow
	} else {
		headerIndex = detectHeaderRow(records)
	}

	headers := sanitizeHeaders(records[headerIndex])
	var rows []Row
	for idx := headerIndex + 1; idx < len(records); idx++ {
		if isBlank(records[idx]) {
			continue
		}
		rows = append(rows, Row{
			Number: idx + 1,
			Values: padRow(cleanCells(records[idx]), len(headers)),
		})
	}

	return Table{
		HeaderRowIndex:   headerIndex,
		Headers:          headers,
		Rows:             rows,
		HeaderCandidates: buildHeaderCandidates(records, headerCandidateLimit, headerIndex),
	}, nil
}

// detectHeaderRow returns the first leading row whose textual cells cover at least
// headerTextRatio of the widest row. Title rows and blank padding above the real header
// are skipped that way. Falls back to the first non-empty row.
func detectHeaderRow(records [][]string) int {
	limit := len(records)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	widest := 0
	for idx := 0; idx < limit; idx++ {
		if n := nonEmptyCount(records[idx]); n > widest {
			widest = n
		}
	}
	required := int(math.Ceil(float64(widest) * headerTextRatio))
	if required < 1 {
		required = 1
	}

	first := -1
	for idx := 0; idx < limit; idx++ {
		row := records[idx]
		if isBlank(row) {
			continue
		}
		if first < 0 {
			first = idx
		}
		if textCount(row) >= required {
			return idx
		}
	}
	if first < 0 {
		for idx, row := range records {
			if !isBlank(row) {
				return idx
			}
		}
	}
	return first
}

func buildHeaderCandidates(records [][]string, limit int, currentIndex int) []HeaderCandidate {
	candidates := make([]HeaderCandidate, 0, limit)
	for idx, row := range records {
		if isBlank(row) {
			continue
		}
		candidates = append(candidates, HeaderCandidate{
			Index:   idx,
			Values:  cleanCells(row),
			Current: idx == currentIndex,
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.Join(strings.Fields(value), " ")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		key := strings.ToLower(name)
		count := seen[key]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", name, count+1)
		}
		seen[key] = count + 1

		headers[idx] = name
	}

	return headers
}

func cleanCells(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func isBlank(row []string) bool {
	return nonEmptyCount(row) == 0
}

func nonEmptyCount(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}

func textCount(row []string) int {
	n := 0
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64); err == nil {
			continue
		}
		n++
	}
	return n
}
