package viz

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the monitor.
type Theme struct {
	Name string
	// Title is the start and end of the title gradient.
	Title  [2]lipgloss.Color
	Bodies lipgloss.Color
	Plot   lipgloss.Color
	Muted  lipgloss.Color
	OK     lipgloss.Color
	Warn   lipgloss.Color
	Fail   lipgloss.Color
}

var Themes = []Theme{
	{
		Name:   "phosphor",
		Title:  [2]lipgloss.Color{"#00ff88", "#00ccff"},
		Bodies: "#88ff88",
		Plot:   "#00ff88",
		Muted:  "#557755",
		OK:     "#00ff88",
		Warn:   "#ffcc00",
		Fail:   "#ff4444",
	},
	{
		Name:   "granite",
		Title:  [2]lipgloss.Color{"#dddddd", "#7799bb"},
		Bodies: "#cccccc",
		Plot:   "#7799bb",
		Muted:  "#777777",
		OK:     "#88cc88",
		Warn:   "#ddaa44",
		Fail:   "#dd5555",
	},
	{
		Name:   "ocean",
		Title:  [2]lipgloss.Color{"#0077be", "#00e0ff"},
		Bodies: "#e0f0ff",
		Plot:   "#00a8cc",
		Muted:  "#4488aa",
		OK:     "#00ff88",
		Warn:   "#ffcc00",
		Fail:   "#ff4444",
	},
	{
		Name:   "sunset",
		Title:  [2]lipgloss.Color{"#ff6b6b", "#feca57"},
		Bodies: "#fff5f5",
		Plot:   "#ff9ff3",
		Muted:  "#8b6b8c",
		OK:     "#5fd068",
		Warn:   "#ffc048",
		Fail:   "#ff4757",
	},
}

var CurrentTheme = Themes[0]

func GetTheme(name string) (Theme, bool) {
	for _, t := range Themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

func SetTheme(name string) error {
	t, ok := GetTheme(name)
	if !ok {
		return fmt.Errorf("unknown theme %q (available: %v)", name, ThemeNames())
	}
	CurrentTheme = t
	return nil
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
