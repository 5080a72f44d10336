package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	leftAligned = tw.CellAlignment{Global: tw.AlignLeft}

	listingConfig = tablewriter.Config{
		Header: tw.CellConfig{Formatting: tw.CellFormatting{AutoFormat: tw.On}, Alignment: leftAligned},
		Row:    tw.CellConfig{Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone}, Alignment: leftAligned},
	}
	listingRendition = tw.Rendition{
		Borders:  tw.BorderNone,
		Settings: tw.Settings{Separators: tw.Separators{ShowHeader: tw.Off}},
	}
)

// Table buffers rows of a listing such as lands or transactions and writes
// them borderless on Render. Rows shorter than the header are padded.
type Table struct {
	w      io.Writer
	header []string
	rows   [][]string
	quiet  bool
}

// Table starts a listing on the printer's output that honors quiet mode.
func (p *Printer) Table(headers ...string) *Table {
	t := NewTable(p.out, headers)
	t.quiet = p.quiet
	return t
}

func NewTable(w io.Writer, headers []string) *Table {
	return &Table{w: w, header: headers}
}

func (t *Table) AddRow(cells ...string) {
	row := make([]string, max(len(cells), len(t.header)))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Render() error {
	if t.quiet {
		return nil
	}
	tbl := tablewriter.NewTable(t.w,
		tablewriter.WithConfig(listingConfig),
		tablewriter.WithRendition(listingRendition),
	)
	tbl.Header(t.header)
	if err := tbl.Bulk(t.rows); err != nil {
		return fmt.Errorf("table rows: %w", err)
	}
	return tbl.Render()
}
