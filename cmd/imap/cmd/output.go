package cmd

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/viant/afs/url"

	"github.com/polytrackmods/PolyDeobfuscated/internal/checker"
	"github.com/polytrackmods/PolyDeobfuscated/internal/deobfuscator"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// console prints user facing lines. Nothing but errors is printed when silent.
type console struct {
	out    io.Writer
	err    io.Writer
	silent bool
}

func (c *console) printf(format string, args ...interface{}) {
	if c.silent {
		return
	}
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) success(message, path string) {
	c.printf("%s %s\n", successStyle.Render(message), pathStyle.Render(path))
}

func (c *console) warning(message, path string) {
	c.printf("%s %s\n", warningStyle.Render(message), pathStyle.Render(path))
}

func (c *console) failure(err error) {
	fmt.Fprintf(c.err, "%s %v\n", errorStyle.Render("Error:"), err)
}

func (c *console) duplicate(w checker.DuplicateWarning) {
	artifacts := make([]string, len(w.Artifacts))
	for i, a := range w.Artifacts {
		artifacts[i] = pathStyle.Render(a)
	}
	c.printf("%s %s %s %s\n",
		warningStyle.Render("WARNING: Source maps"),
		strings.Join(artifacts, warningStyle.Render(" and ")),
		warningStyle.Render("contain an identical identifier mapping for"),
		warningStyle.Render(fmt.Sprintf("'%s' → '%s'.", w.Key, w.Name)),
	)
}

func (c *console) diff(text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			c.printf("%s", pathStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			c.printf("%s", successStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			c.printf("%s", errorStyle.Render(line))
		default:
			c.printf("%s", line)
		}
	}
}

// summary renders the per file results of a run as a table.
func (c *console) summary(report *deobfuscator.Report) {
	if c.silent || report == nil || len(report.Files) == 0 {
		return
	}
	c.printf("\n%s", renderSummaryTable(report))
}

func renderSummaryTable(report *deobfuscator.Report) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Status", "Mappings", "Source maps"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	total := 0
	for _, f := range report.Files {
		status := string(f.Status)
		if f.Mismatch != "" {
			status += " (mismatch)"
		}
		table.Append([]string{f.Path, status, fmt.Sprintf("%d", f.Mappings), strings.Join(f.Artifacts, ", ")})
		total += f.Mappings
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(report.Files)),
		fmt.Sprintf("%d duplicates", len(report.Duplicates)),
		fmt.Sprintf("%d", total),
		"",
	})

	table.Render()

	return tableBuffer.String()
}

// location joins a mapping root and an artifact path for display.
func location(root, rel string) string {
	if url.Scheme(root, "") != "" {
		return url.Join(root, rel)
	}
	return deobfuscator.DisplayPath(filepath.Join(root, filepath.FromSlash(rel)))
}
