// Package sheet reads company lists from XLSX/CSV files and writes the
// annotated result workbook.
package sheet

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/cnpj-finder/internal/model"
)

// Input column names. Only ColCompany is required.
const (
	ColCompany = "EMPRESA"
	ColCity    = "CIDADE"
	ColState   = "UF"
)

// ErrMissingRequiredColumn is returned before any record is produced when the
// company column is absent.
var ErrMissingRequiredColumn = eris.New("sheet: missing required column")

// ErrUnsupportedFormat is returned for file extensions other than .xlsx/.csv.
var ErrUnsupportedFormat = eris.New("sheet: unsupported file format")

// Read loads records from an .xlsx or .csv file.
func Read(path string) ([]model.InputRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read file")
	}
	return Decode(path, data)
}

// Decode parses file contents, choosing the format from name's extension.
func Decode(name string, data []byte) ([]model.InputRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx":
		rows, err = ReadXLSX(data, XLSXOptions{})
	case ".csv":
		rows, err = ReadCSV(bytes.NewReader(data))
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return ParseRows(rows)
}

// ParseRows maps a header row plus data rows to input records. Header names
// match ignoring case, accents and surrounding space. Trailing blank rows are
// dropped; blank rows between data rows are kept so they surface as
// MISSING_INPUT.
func ParseRows(rows [][]string) ([]model.InputRecord, error) {
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrMissingRequiredColumn, "%q (empty dataset)", ColCompany)
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		key := foldHeader(col)
		if _, dup := colIdx[key]; !dup {
			colIdx[key] = i
		}
	}

	companyIdx, ok := colIdx[foldHeader(ColCompany)]
	if !ok {
		return nil, eris.Wrapf(ErrMissingRequiredColumn, "%q (found %s)", ColCompany, strings.Join(rows[0], ", "))
	}
	cityIdx, hasCity := colIdx[foldHeader(ColCity)]
	stateIdx, hasState := colIdx[foldHeader(ColState)]

	data := rows[1:]
	for len(data) > 0 && isBlank(data[len(data)-1]) {
		data = data[:len(data)-1]
	}

	records := make([]model.InputRecord, 0, len(data))
	for _, row := range data {
		rec := model.InputRecord{Company: cell(row, companyIdx)}
		if hasCity {
			rec.City = cell(row, cityIdx)
		}
		if hasState {
			rec.StateCode = cell(row, stateIdx)
		}
		records = append(records, rec)
	}
	return records, nil
}

// cell safely retrieves a column value from a row.
func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// foldHeader turns " Região " into "regiao".
func foldHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		stripped = strings.TrimSpace(s)
	}
	// Casers are stateful; build one per call.
	return cases.Fold().String(stripped)
}

// Write stores records as .xlsx or .csv depending on path's extension.
func Write(path string, recs []model.OutputRecord) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".csv" {
		return eris.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "sheet: create output file")
	}

	var w io.Writer = f
	if ext == ".csv" {
		err = WriteCSV(w, recs)
	} else {
		err = WriteXLSX(w, recs)
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = eris.Wrap(closeErr, "sheet: close output file")
	}
	return err
}
