package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cnpj-finder/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads all rows of a CSV stream. The delimiter is sniffed from the
// header line: spreadsheet exports in pt-BR locales use ';'.
func ReadCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return rows, nil
}

func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// WriteCSV writes records with the OutputColumns header.
func WriteCSV(w io.Writer, recs []model.OutputRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputColumns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, r := range recs {
		if err := cw.Write(outputRow(r)); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "csv: flush")
	}
	return nil
}
