package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/yndnr/respkv-go/pkg/resp"
)

// TableFormatter formats replies as an aligned table.
type TableFormatter struct {
	NoHeaders bool
}

// Format renders arrays as INDEX/VALUE rows and INFO style text
// ("# Section" headings plus "field:value" lines) as FIELD/VALUE rows.
// Anything else is a single VALUE cell.
func (f *TableFormatter) Format(w io.Writer, reply resp.Frame) error {
	return toTable(reply).RenderWithOptions(w, f.NoHeaders)
}

func toTable(reply resp.Frame) *Table {
	switch v := reply.(type) {
	case resp.Array:
		t := &Table{Headers: []string{"INDEX", "VALUE"}}
		for i, e := range v {
			t.AddRow(strconv.Itoa(i+1), cellValue(e))
		}
		return t
	case resp.BulkString:
		if t, ok := InfoTable(string(v)); ok {
			return t
		}
	}
	t := &Table{Headers: []string{"VALUE"}}
	t.AddRow(cellValue(reply))
	return t
}

// InfoTable parses INFO text into FIELD/VALUE rows. It reports false when
// the text has no "field:value" lines.
func InfoTable(text string) (*Table, bool) {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, false
		}
		t.AddRow(field, value)
	}
	return t, len(t.Rows) > 0
}

func cellValue(f resp.Frame) string {
	switch v := f.(type) {
	case resp.Array:
		return fmt.Sprintf("[%d items]", len(v))
	case resp.Error:
		return "(error) " + string(v)
	case resp.Null:
		return "(nil)"
	}
	s, _ := resp.String(f)
	if s == "" {
		return "-"
	}
	return s
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		if _, err := io.WriteString(tw, strings.Join(t.Headers, "\t")+"\n"); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := io.WriteString(tw, strings.Join(row, "\t")+"\n"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
