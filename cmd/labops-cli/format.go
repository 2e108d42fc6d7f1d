package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// table is a lazily built table rendering of a result.
type table func() (headers []string, rows [][]string)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatQuiet(ids ...string) {
	for _, id := range ids {
		fmt.Println(id)
	}
}

// output prints v in the selected format. quiet lists the IDs printed by
// --format quiet; a nil tbl falls back to JSON for --format table.
func output(v any, tbl table, quiet ...string) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quiet...)
	case "table":
		if tbl == nil {
			formatJSON(v)
			return
		}
		formatTable(tbl())
	default:
		formatJSON(v)
	}
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
