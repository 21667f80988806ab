package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// newTable returns a borderless, left-aligned table writing to w.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	t := newTable(w)
	t.Header(header)
	if err := t.Bulk(rows); err != nil {
		return err
	}
	return t.Render()
}

// toneColor maps a view tone to a terminal colour.
func toneColor(tone string) *color.Color {
	switch tone {
	case "green":
		return color.New(color.FgGreen)
	case "yellow":
		return color.New(color.FgYellow)
	case "orange":
		return color.New(color.FgHiRed)
	case "red":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}

// gradeColor colours a letter grade by its first letter.
func gradeColor(grade string) string {
	if grade == "" {
		return grade
	}
	var c *color.Color
	switch grade[0] {
	case 'A':
		c = color.New(color.FgGreen, color.Bold)
	case 'B':
		c = color.New(color.FgYellow, color.Bold)
	case 'C':
		c = color.New(color.FgHiRed, color.Bold)
	case 'D', 'F':
		c = color.New(color.FgRed, color.Bold)
	default:
		c = color.New(color.Faint)
	}
	return c.Sprint(grade)
}

func heading(w io.Writer, title string) {
	color.New(color.Bold).Fprintf(w, "\n%s\n", title)
}
