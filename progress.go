package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const progressUpdateInterval = 100 * time.Millisecond

var progressLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

// progressBar draws a single updating line on a terminal. Calls must come
// from one goroutine.
type progressBar struct {
	w         io.Writer
	label     string
	bar       progress.Model
	start     time.Time
	lastDrawn time.Time
}

// newProgress returns a callback that draws progress to w, or nil when w is
// not a terminal so that logs stay clean when redirected.
func newProgress(w io.Writer, label string, enabled bool) func(done, total int) {
	if !enabled {
		return nil
	}
	p := &progressBar{
		w:     w,
		label: label,
		bar:   progress.New(progress.WithGradient("#04B575", "#7D56F4"), progress.WithWidth(30)),
		start: time.Now(),
	}
	return p.update
}

func (p *progressBar) update(done, total int) {
	if total == 0 {
		return
	}
	now := time.Now()
	if done < total && now.Sub(p.lastDrawn) < progressUpdateInterval {
		return
	}
	p.lastDrawn = now

	fmt.Fprintf(p.w, "\r%s %s %d/%d ETA: %s ",
		progressLabelStyle.Render(p.label),
		p.bar.ViewAs(float64(done)/float64(total)),
		done, total,
		eta(done, total, now.Sub(p.start)))
	if done == total {
		fmt.Fprintln(p.w)
	}
}

func eta(done, total int, elapsed time.Duration) string {
	if done == 0 {
		return "..."
	}
	remaining := float64(total-done) * (elapsed.Seconds() / float64(done))
	return formatDuration(remaining)
}

// formatDuration converts seconds to a human-readable duration
func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	minutes := int(seconds / 60)
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, int(seconds)%60)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
