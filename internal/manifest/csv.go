package manifest

import (
	"bytes"
	"encoding/csv"
	"strings"
)

const byteOrderMark = "\ufeff"

// RawRow maps a header label to the cell found under it. It only lives between
// parsing and column resolution; see Columns.Record.
type RawRow map[string]string

// Sheet is a parsed CSV document. Headers holds the distinct trimmed labels of
// the first row in order of first appearance.
type Sheet struct {
	Headers []string
	Rows    []RawRow
}

// Parse reads CSV text using the first row as headers.
//
// Quoting follows the usual convention: a quote opens a quoted section
// anywhere in a cell, a doubled quote inside it is a literal quote. Outside
// quotes ',' ends a cell and '\n', '\r' or "\r\n" end a row. Trailing rows
// made only of blank cells are dropped and rows shorter than the header are
// padded with empty cells. Empty input yields an empty Sheet.
func Parse(text string) Sheet {
	records := parseRecords(text)
	if len(records) == 0 {
		return Sheet{}
	}

	labels := make([]string, len(records[0]))
	headers := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for i, h := range records[0] {
		labels[i] = strings.TrimSpace(h)
		if _, ok := seen[labels[i]]; !ok {
			seen[labels[i]] = struct{}{}
			headers = append(headers, labels[i])
		}
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(RawRow, len(labels))
		for j, label := range labels {
			val := ""
			if j < len(record) {
				val = record[j]
			}
			// duplicate labels: the right-most column wins
			row[label] = val
		}
		rows = append(rows, row)
	}
	return Sheet{Headers: headers, Rows: rows}
}

func parseRecords(text string) [][]string {
	text = strings.TrimPrefix(text, byteOrderMark)

	var (
		records  [][]string
		record   []string
		cell     strings.Builder
		inQuotes bool
	)
	endCell := func() {
		record = append(record, cell.String())
		cell.Reset()
	}
	endRecord := func() {
		endCell()
		records = append(records, record)
		record = nil
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inQuotes {
			if ch == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					cell.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			cell.WriteByte(ch)
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
		case ',':
			endCell()
		case '\n':
			endRecord()
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRecord()
		default:
			cell.WriteByte(ch)
		}
	}
	endRecord()

	for len(records) > 0 && isBlankRecord(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	return records
}

func isBlankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// EncodeCSV writes rows as CSV text that Parse reads back cell for cell.
func EncodeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}
