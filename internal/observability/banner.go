package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorNeonCyan = "\033[96m"
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

const banner = `
 _    _            _       _           _
| |  | |          | |     | |         | |
| |  | | ___  _ __| | __  | | ___  ___| | __
| |/\| |/ _ \| '__| |/ /  | |/ _ \/ __| |/ /
\  /\  / (_) | |  |   <   | |  __/\__ \   <
 \/  \/ \___/|_|  |_|\_\  |_|\___||___/_|\_\

     >> plan . retrieve . act <<
`

// PrintBanner writes the REPL banner centred for the current terminal.
func PrintBanner(w io.Writer) {
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan, l, colorReset)
	}
}

// PrintSection writes a titled separator spanning at most 60 columns.
func PrintSection(w io.Writer, title string) {
	width := termWidth()
	if width > 60 {
		width = 60
	}
	rule := strings.Repeat("=", width)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, title, rule)
}
