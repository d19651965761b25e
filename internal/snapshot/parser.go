package snapshot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when a downloaded snapshot file is
	// neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported snapshot file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// RawRow is one source row after column mapping but before any value
// parsing. All fields are raw text exactly as published.
type RawRow struct {
	Holder        string
	Issuer        string
	ISIN          string
	CompanyName   string
	Percent       string
	EffectiveDate string
}

// ColumnMap names the source header labels that feed each RawRow field.
// Empty labels mean the column does not exist in that file.
type ColumnMap struct {
	Holder        string
	Issuer        string
	ISIN          string
	CompanyName   string
	Percent       string
	EffectiveDate string
}

// AggregateColumns maps the issuer-aggregate register file.
var AggregateColumns = ColumnMap{
	Issuer:        "LEI",
	CompanyName:   "Bolagsnamn",
	Percent:       "Position i procent",
	EffectiveDate: "Senast rapporterade positionens dag",
}

// PositionColumns maps the holder-specific register file.
var PositionColumns = ColumnMap{
	Holder:        "Innehavare av positionen",
	Issuer:        "LEI",
	ISIN:          "ISIN",
	CompanyName:   "Namn på emittent",
	Percent:       "Position i procent",
	EffectiveDate: "Datum för positionen",
}

// ParseFile reads a downloaded snapshot file into raw rows, preserving
// source order. The register files carry a free-text preamble before the
// header, so the header row is located by scanning for the percent column
// label rather than assumed to be first.
func ParseFile(fileName string, payload []byte, columns ColumnMap) ([]RawRow, error) {
	if len(payload) == 0 {
		return nil, errors.New("snapshot file is empty")
	}

	var records [][]string
	var err error
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		records, err = readCSV(payload)
	case ".xlsx", ".ods":
		records, err = readExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
	if err != nil {
		return nil, err
	}

	return mapRows(records, columns)
}

func readCSV(payload []byte) ([][]string, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.Comma = detectDelimiter(payload)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from workbook: %w", err)
	}
	return rows, nil
}

// detectDelimiter picks between comma and semicolon, whichever the register
// export actually used. Swedish exports favour semicolons.
func detectDelimiter(payload []byte) rune {
	head := payload
	if idx := bytes.IndexByte(payload, '\n'); idx > 0 {
		head = payload[:idx]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}

func mapRows(records [][]string, columns ColumnMap) ([]RawRow, error) {
	headerIdx, headerPos := locateHeader(records, columns)
	if headerIdx < 0 {
		return nil, fmt.Errorf("header row with column %q not found", columns.Percent)
	}

	cell := func(row []string, pos int) string {
		if pos < 0 || pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	rows := make([]RawRow, 0, len(records)-headerIdx-1)
	for _, record := range records[headerIdx+1:] {
		if len(cleanRow(record)) == 0 {
			continue
		}
		rows = append(rows, RawRow{
			Holder:        cell(record, headerPos[columns.Holder]),
			Issuer:        cell(record, headerPos[columns.Issuer]),
			ISIN:          cell(record, headerPos[columns.ISIN]),
			CompanyName:   cell(record, headerPos[columns.CompanyName]),
			Percent:       cell(record, headerPos[columns.Percent]),
			EffectiveDate: cell(record, headerPos[columns.EffectiveDate]),
		})
	}
	return rows, nil
}

// locateHeader scans for the first row containing the percent column label
// and returns its index plus a label→column position map. Labels absent from
// the header map to -1.
func locateHeader(records [][]string, columns ColumnMap) (int, map[string]int) {
	labels := []string{
		columns.Holder, columns.Issuer, columns.ISIN,
		columns.CompanyName, columns.Percent, columns.EffectiveDate,
	}

	for idx, record := range records {
		positions := map[string]int{"": -1}
		for _, label := range labels {
			if label == "" {
				continue
			}
			positions[label] = -1
			for col, value := range record {
				if strings.EqualFold(strings.TrimSpace(value), label) {
					positions[label] = col
					break
				}
			}
		}
		if columns.Percent != "" && positions[columns.Percent] >= 0 {
			return idx, positions
		}
	}
	return -1, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}
