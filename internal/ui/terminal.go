package ui

import (
	"os"

	"github.com/moby/term"
)

// IsTerminal reports whether f is attached to a terminal. Used to decide
// whether interactive features (tail box, prompts, press-Return) make sense.
func IsTerminal(f *os.File) bool {
	_, isTerm := term.GetFdInfo(f)
	return isTerm
}

// TerminalWidth returns the column count of the terminal behind stdout, or a
// sane default when stdout is not a terminal.
func TerminalWidth() int {
	fd, isTerm := term.GetFdInfo(os.Stdout)
	if !isTerm {
		return 120
	}
	ws, err := term.GetWinsize(fd)
	if err != nil || ws.Width == 0 {
		return 120
	}
	return int(ws.Width)
}
