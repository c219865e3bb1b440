// Package tabular flattens CSV files and spreadsheets into an aligned text table.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/feichai0017/document-chat/internal/models"
)

// missingCell fills cells absent from short rows and empty cells.
const missingCell = "NaN"

type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

func (p *Processor) CanProcess(f models.Format) bool {
	return f.IsTabular()
}

func (p *Processor) Extract(ctx context.Context, path string) (string, error) {
	var (
		rows [][]string
		err  error
	)
	switch models.FormatFromFilename(path) {
	case models.FormatXLSX:
		rows, err = readSheet(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return "", err
	}
	return Render(rows), nil
}

func (p *Processor) Close() error { return nil }

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// readSheet returns the rows of the workbook's first sheet.
func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// Render lays rows out as a fixed-width table. The first row is the header,
// every data row is prefixed with its zero-based index, and columns are
// right-aligned and separated by two spaces.
func Render(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header, data := rows[0], rows[1:]
	cols := len(header)
	for _, row := range data {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}
	if len(data) == 0 {
		return fmt.Sprintf("Empty DataFrame\nColumns: [%s]\nIndex: []", strings.Join(header, ", "))
	}

	cell := func(row []string, i int) string {
		if i >= len(row) || row[i] == "" {
			return missingCell
		}
		return row[i]
	}
	headerCell := func(i int) string {
		if i >= len(header) {
			return "Unnamed: " + strconv.Itoa(i)
		}
		return header[i]
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = utf8.RuneCountInString(headerCell(i))
		for _, row := range data {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell(row, i)))
		}
	}
	indexWidth := len(strconv.Itoa(len(data) - 1))

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", indexWidth))
	for i := 0; i < cols; i++ {
		b.WriteString("  ")
		b.WriteString(padLeft(headerCell(i), widths[i]))
	}
	for n, row := range data {
		b.WriteByte('\n')
		b.WriteString(padRight(strconv.Itoa(n), indexWidth))
		for i := 0; i < cols; i++ {
			b.WriteString("  ")
			b.WriteString(padLeft(cell(row, i), widths[i]))
		}
	}
	return b.String()
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
