package intake

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// maxTabularRows bounds how much of a statement export is rendered.
const maxTabularRows = 2000

// RenderCSV renders a CSV export as pipe-separated lines.
func RenderCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for len(rows) < maxTabularRows {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, rec)
	}
	return renderRows(rows), nil
}

// RenderXLSX renders every sheet of a workbook as pipe-separated lines,
// each sheet introduced by its name.
func RenderXLSX(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return "", eris.New("xlsx: workbook has no sheets")
	}

	var b strings.Builder
	budget := maxTabularRows
	for _, sheet := range f.Sheets {
		if budget <= 0 {
			break
		}
		var rows [][]string
		for _, row := range sheet.Rows {
			if len(rows) == budget {
				break
			}
			rows = append(rows, rowToStrings(row))
		}
		budget -= len(rows)

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## " + sheet.Name + "\n")
		b.WriteString(renderRows(rows))
	}
	return b.String(), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// renderRows drops blank rows and trailing empty cells.
func renderRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		end := len(row)
		for end > 0 && strings.TrimSpace(row[end-1]) == "" {
			end--
		}
		if end == 0 {
			continue
		}
		cells := make([]string, end)
		for i := range end {
			cells[i] = strings.TrimSpace(row[i])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}
