package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

var stdout io.Writer = os.Stdout

const timeLayout = "2006-01-02 15:04"

// newTable returns the borderless, left-aligned table used for listings.
func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAutoWrapText(false)
	return table
}

// newBoxTable returns a bordered table with centred cells.
func newBoxTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoWrapText(false)
	return table
}

// render writes rows in format. For table output the rows are written through
// newBoxTable when boxed is set and newTable otherwise; data is used for the
// json and yaml encodings.
func render(w io.Writer, format string, header []string, rows [][]string, data any, boxed bool) error {
	switch format {
	case "json":
		return writeJSON(w, data)
	case "yaml":
		return writeYAML(w, data)
	case "csv":
		return writeCSV(w, header, rows)
	default:
		var table *tablewriter.Table
		if boxed {
			table = newBoxTable(w, header)
		} else {
			table = newTable(w, header)
		}
		table.AppendBulk(rows)
		table.Render()
		return nil
	}
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return writer.Error()
}

// truncate shortens s to max display columns, ending in "..." when cut.
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "...")
}
