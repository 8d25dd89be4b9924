package utils

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Truncate folds s onto one line and cuts it to at most width terminal
// cells, ending the cut with "...". Wide runes count as two cells.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return ansi.Truncate(s, width, "...")
}
