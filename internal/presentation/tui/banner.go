package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the chatflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"        _           _    __ _", "#818cf8"},
		{"   ___ | |__   __ _| |_ / _| | _____      __", "#a78bfa"},
		{"  / __|| '_ \\ / _` | __| |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{" | (__ | | | | (_| | |_|  _| | (_) \\ V  V /", "#e879f9"},
		{"  \\___||_| |_|\\__,_|\\__|_| |_|\\___/ \\_/\\_/", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
