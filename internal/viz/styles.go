package viz

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	MetricLabel = fg("#888899")
	MetricValue = fg("#00ccff").Bold(true)
	KeyHint     = fg("#666688").Italic(true)
)

type status int

const (
	statusRunning status = iota
	statusPaused
	statusDone
	statusFailed
)

func (s status) style() lipgloss.Style {
	t := CurrentTheme
	switch s {
	case statusPaused:
		return fg(t.Warn).Bold(true)
	case statusFailed:
		return fg(t.Fail).Bold(true)
	}
	return fg(t.OK).Bold(true)
}

// GradientText colors text from start to end, one rune at a time.
func GradientText(text string, start, end lipgloss.Color) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	a, b := rgb(start), rgb(end)

	var out strings.Builder
	for i, r := range runes {
		f := 0.0
		if len(runes) > 1 {
			f = float64(i) / float64(len(runes)-1)
		}
		var c [3]int
		for k := range c {
			c[k] = a[k] + int(f*float64(b[k]-a[k]))
		}
		out.WriteString(fg(hex(c)).Bold(true).Render(string(r)))
	}
	return out.String()
}

// rgb parses #rrggbb, falling back to white.
func rgb(c lipgloss.Color) [3]int {
	s := string(c)
	if len(s) != 7 || s[0] != '#' {
		return [3]int{255, 255, 255}
	}
	var out [3]int
	for k := range out {
		v, err := strconv.ParseUint(s[1+2*k:3+2*k], 16, 8)
		if err != nil {
			return [3]int{255, 255, 255}
		}
		out[k] = int(v)
	}
	return out
}

func hex(c [3]int) lipgloss.Color {
	var b strings.Builder
	b.WriteByte('#')
	for _, v := range c {
		v = min(max(v, 0), 255)
		if v < 16 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(int64(v), 16))
	}
	return lipgloss.Color(b.String())
}

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func AnimatedSpinner(frame int) string {
	return spinner[frame%len(spinner)]
}

// ProgressBar renders the fraction done of a run.
func ProgressBar(fraction float64, width int) string {
	filled := min(max(int(fraction*float64(width)), 0), width)
	return fg(CurrentTheme.Plot).Render(strings.Repeat("█", filled)) +
		fg(CurrentTheme.Muted).Render(strings.Repeat("░", width-filled))
}

// SparklineChart renders the last width values as block characters scaled
// between their min and max.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return fg(CurrentTheme.Muted).Render(strings.Repeat("─", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	blocks := []rune("▁▂▃▄▅▆▇█")

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(blocks)-1))
		b.WriteRune(blocks[min(max(idx, 0), len(blocks)-1)])
	}
	return fg(CurrentTheme.Plot).Render(b.String())
}

func Separator(width int) string {
	side := max(0, (width-3)/2)
	return fg(CurrentTheme.Muted).Render(strings.Repeat("─", side) + " ◆ " + strings.Repeat("─", side))
}
