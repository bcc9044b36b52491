package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/luinbytes/recovery-dedup/audit"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).PaddingLeft(1).PaddingRight(1)
	dryRunStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C"))
	mutedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func statsLine(s audit.PurgeStats) string {
	return fmt.Sprintf("scanned=%d delete=%d keep=%d errors=%d freed=%s",
		s.Scanned, s.Deleted, s.Kept, s.Errors, humanize.IBytes(uint64(s.DeletedBytes)))
}

// printSummary writes the per-folder and total counters of a run.
func printSummary(w io.Writer, title string, dryRun bool, s audit.Summary, report string) {
	fmt.Fprintln(w)
	header := summaryTitleStyle.Render(title)
	if dryRun {
		header += " " + dryRunStyle.Render("DRY RUN, nothing was deleted")
	}
	fmt.Fprintln(w, header)

	for _, f := range s.Folders {
		fmt.Fprintf(w, "  %-16s %s\n", filepath.Base(f.Folder), statsLine(f.PurgeStats))
	}
	fmt.Fprintln(w, mutedStyle.Render(strings.Repeat("─", 40)))
	fmt.Fprintf(w, "  %-16s %s\n", "TOTAL", statsLine(s.Total))
	fmt.Fprintf(w, "  Report: %s\n", report)
}
