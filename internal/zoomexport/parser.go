package zoomexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Parse reads a raw Zoom report CSV and splits it into named sections.
func Parse(r io.Reader) (*Export, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}
	return SplitSections(rows), nil
}

// ReadRows reads every row of a report CSV. Zoom exports have ragged widths
// (section markers are single-cell rows) so the reader cannot enforce a
// fixed field count.
func ReadRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SplitSections walks the raw rows and groups them into sections. A section
// opens on a marker row (first cell is a known section name, all other cells
// empty); the next non-empty row is its header and everything after that is
// data until the next marker. One quirk carried from real exports: a row that
// STARTS with "Topic" but carries more cells is the Topic section's header
// itself, not a marker.
func SplitSections(rows [][]string) *Export {
	exp := &Export{sections: make(map[string]*Section)}

	var current *Section
	for _, raw := range rows {
		row := trimRow(raw)
		if isEmptyRow(row) {
			continue
		}

		first := row[0]
		if sectionNames[first] {
			if restEmpty(row) {
				current = exp.open(first)
				continue
			}
			if first == SectionTopic && exp.Section(SectionTopic) == nil {
				// Inline topic header: the marker and the header are one row.
				current = exp.open(SectionTopic)
				current.Columns = row
				continue
			}
		}

		if current == nil {
			continue
		}
		if current.Columns == nil {
			current.Columns = row
			continue
		}
		current.Rows = append(current.Rows, fitRow(row, len(current.Columns)))
	}

	return exp
}

func (e *Export) open(name string) *Section {
	if sec, ok := e.sections[name]; ok {
		return sec
	}
	sec := &Section{Name: name}
	e.sections[name] = sec
	e.order = append(e.order, name)
	return sec
}

func trimRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

func restEmpty(row []string) bool {
	for _, cell := range row[1:] {
		if cell != "" {
			return false
		}
	}
	return true
}

// fitRow pads or truncates a data row to the section's header width.
func fitRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// stripBOM wraps a reader to strip a leading UTF-8 BOM. The sniff reads the
// full three bytes even from readers that hand out short counts, and puts
// back whatever it read when the stream starts with anything else.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err == nil && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf[:n]), r)
}
