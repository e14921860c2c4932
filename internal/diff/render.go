package diff

import (
	"fmt"
	"strings"
)

// Stats counts the entries of an edit script by type.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Common  int `json:"common"`
}

// Summarize counts the entries of script.
func Summarize(script []Edit) Stats {
	var s Stats
	for _, e := range script {
		switch e.Type {
		case OpAdded:
			s.Added++
		case OpRemoved:
			s.Removed++
		default:
			s.Common++
		}
	}
	return s
}

// Render formats a script one entry per line with a +/- marker and the
// new-text line number, the layout used by the comparison views.
func Render(script []Edit) string {
	var sb strings.Builder
	for _, e := range script {
		switch e.Type {
		case OpAdded:
			fmt.Fprintf(&sb, "+ %4d  %s\n", e.LineNumber, e.Value)
		case OpRemoved:
			fmt.Fprintf(&sb, "-       %s\n", e.Value)
		default:
			fmt.Fprintf(&sb, "  %4d  %s\n", e.LineNumber, e.Value)
		}
	}
	return sb.String()
}
