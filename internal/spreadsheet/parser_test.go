package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}, order ...string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for rowIdx, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseCSVDetectsHeaderAndStripsBOM(t *testing.T) {
	payload := []byte("\xEF\xBB\xBFNavn,Adresse,Kategori\nOla Nordmann AS,Storgata 1,elkontroll\n,,\nKari,Fjordveien 3,\n")

	table, err := Parse("kunder.csv", payload, Options{})
	require.NoError(t, err)

	require.Equal(t, FormatDelimited, table.Format)
	require.Equal(t, []string{"Navn", "Adresse", "Kategori"}, table.Headers)
	require.Equal(t, 0, table.HeaderRowIndex)
	require.Len(t, table.Rows, 2)
	require.Equal(t, 2, table.Rows[0].Number)
	require.Equal(t, 4, table.Rows[1].Number)
	require.Equal(t, []string{"Kari", "Fjordveien 3", ""}, table.Rows[1].Values)
}

func TestParseCSVSniffsSemicolonAndDecodesWindows1252(t *testing.T) {
	source := "Navn;Adresse;Poststed\nBjørn Ås;Storgata 1;Trondheim\nÆrlige Håndverkere;Kirkegata 5;Bodø\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(source)
	require.NoError(t, err)

	table, err := Parse("kunder.csv", []byte(encoded), Options{})
	require.NoError(t, err)

	require.Equal(t, ";", table.Delimiter)
	require.Equal(t, []string{"Navn", "Adresse", "Poststed"}, table.Headers)
	require.Equal(t, "Bjørn Ås", table.Rows[0].Values[0])
	require.Equal(t, "Bodø", table.Rows[1].Values[2])
}

func TestParseSkipsTitleRowsWhenDetectingHeader(t *testing.T) {
	payload := []byte("Kundeliste 2024,,,\n,,,\nNavn,Adresse,Postnr,Telefon\nOla,Storgata 1,7010,91234567\n")

	table, err := Parse("export.csv", payload, Options{})
	require.NoError(t, err)

	require.Equal(t, 2, table.HeaderRowIndex)
	require.Equal(t, []string{"Navn", "Adresse", "Postnr", "Telefon"}, table.Headers)
	require.Len(t, table.Rows, 1)
	require.Equal(t, 4, table.Rows[0].Number)
	require.Len(t, table.HeaderCandidates, 3)
	require.True(t, table.HeaderCandidates[1].Current)
}

func TestParseHonoursSelectedHeaderRow(t *testing.T) {
	payload := []byte("a,b\nNavn,Adresse\nOla,Storgata 1\n")
	header := 1

	table, err := Parse("kunder.csv", payload, Options{HeaderRow: &header})
	require.NoError(t, err)
	require.Equal(t, []string{"Navn", "Adresse"}, table.Headers)

	outOfRange := 9
	_, err = Parse("kunder.csv", payload, Options{HeaderRow: &outOfRange})
	require.ErrorIs(t, err, ErrHeaderRowOutOfRange)
}

func TestParseSanitizesBlankAndDuplicateHeaders(t *testing.T) {
	payload := []byte("Navn,,Navn,  Post   nr \nOla,x,y,7010\n")

	table, err := Parse("kunder.csv", payload, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"Navn", "column_2", "Navn_2", "Post nr"}, table.Headers)
}

func TestParseRejectsOversizedAndUnknownFiles(t *testing.T) {
	_, err := Parse("kunder.csv", []byte("Navn\nOla\n"), Options{MaxBytes: 4})
	require.ErrorIs(t, err, ErrFileTooLarge)

	_, err = Parse("kunder.pdf", []byte("%PDF-1.4"), Options{})
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse("kunder.xlsx", []byte("Navn,Adresse\n"), Options{})
	require.ErrorIs(t, err, ErrUnreadableFile)

	_, err = Parse("kunder.csv", []byte("\n\n"), Options{})
	require.ErrorIs(t, err, ErrEmptySheet)
}

func TestParseWorkbookPicksFirstPopulatedSheet(t *testing.T) {
	payload := buildWorkbook(t, map[string][][]interface{}{
		"Forside": {},
		"Kunder": {
			{"Navn", "Adresse", "Postnr"},
			{"Ola Nordmann AS", "Storgata 1", 7010},
		},
	}, "Forside", "Kunder")

	table, err := Parse("kunder.xlsx", payload, Options{})
	require.NoError(t, err)

	require.Equal(t, FormatXLSX, table.Format)
	require.Equal(t, "Kunder", table.Sheet)
	require.Equal(t, []string{"Forside", "Kunder"}, table.Sheets)
	require.Equal(t, []string{"Navn", "Adresse", "Postnr"}, table.Headers)
	require.Equal(t, "7010", table.Rows[0].Values[2])
}

func TestParseWorkbookSelectedSheet(t *testing.T) {
	payload := buildWorkbook(t, map[string][][]interface{}{
		"A": {{"Navn"}, {"Ola"}},
		"B": {{"Navn"}, {"Kari"}},
	}, "A", "B")

	table, err := Parse("kunder.xlsx", payload, Options{Sheet: "B"})
	require.NoError(t, err)
	require.Equal(t, "Kari", table.Rows[0].Values[0])

	_, err = Parse("kunder.xlsx", payload, Options{Sheet: "C"})
	require.ErrorIs(t, err, ErrSheetNotFound)
}

func TestParseZipNamedCSVIsReadAsWorkbook(t *testing.T) {
	payload := buildWorkbook(t, map[string][][]interface{}{
		"Ark1": {{"Navn", "Adresse"}, {"Ola", "Storgata 1"}},
	}, "Ark1")

	table, err := Parse("kunder.csv", payload, Options{})
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, table.Format)
}
