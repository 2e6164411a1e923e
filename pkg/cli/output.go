package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// table is the tabular rendering of a command result.
type table struct {
	headers []string
	rows    [][]string
}

// tabler is implemented by results that can render as a table.
type tabler interface {
	table() *table
}

func output(cmd *cli.Command, v any) error {
	return encode(writer(cmd), getConfig(cmd).Format, v)
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	case formatTable:
		if t, ok := v.(tabler); ok {
			renderTable(w, t.table())
			return nil
		}
	}

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

func renderTable(w io.Writer, t *table) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader(t.headers)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.AppendBulk(t.rows)
	tw.Render()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fmtInt(v int) string {
	return strconv.Itoa(v)
}

func fmtBool(v bool) string {
	return fmt.Sprintf("%t", v)
}
