package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nestful/nestful/internal/demo"
)

var (
	routesJSON    bool
	routesNoColor bool
	routesPrefix  string
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the demo API route table",
	Long: `Mount the demo resources and print every generated route in
precedence order: list, schema, set, nested relations, detail actions,
then the generic detail pattern.`,
	RunE: runRoutes,
}

func init() {
	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "Emit the route table as JSON")
	routesCmd.Flags().BoolVar(&routesNoColor, "no-color", false, "Disable colored output")
	routesCmd.Flags().StringVar(&routesPrefix, "prefix", "/api/v1", "Mount prefix")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	registry, err := demo.Build(demo.Config{
		Prefix: routesPrefix,
		Log:    zap.NewNop(),
	})
	if err != nil {
		return err
	}
	routes := registry.Routes()

	if routesJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(routes)
	}

	table := newRouteTable(cmd.OutOrStdout(), routesNoColor)
	for _, route := range routes {
		table.addRow(route.Name, strings.Join(route.Methods, ","), route.Pattern)
	}
	table.render()
	return nil
}

// routeTable renders aligned columns with a bold header, matching the
// CLI's other tabular output.
type routeTable struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

func newRouteTable(w io.Writer, noColor bool) *routeTable {
	return &routeTable{
		writer:  w,
		headers: []string{"NAME", "METHODS", "PATTERN"},
		noColor: noColor,
	}
}

func (t *routeTable) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *routeTable) render() {
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	for i, header := range t.headers {
		bold.Fprint(t.writer, padRight(header, widths[i]))
		if i < len(t.headers)-1 {
			fmt.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)

	separators := make([]string, len(t.headers))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	gray.Fprintln(t.writer, strings.Join(separators, "  "))

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(t.writer, padRight(cell, widths[i]))
			if i < len(row)-1 {
				fmt.Fprint(t.writer, "  ")
			}
		}
		fmt.Fprintln(t.writer)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
