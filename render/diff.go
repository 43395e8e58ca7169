package render

import (
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff of expected against actual, or "" when they
// are equal.
func Diff(expected, actual, fromName, toName string) (string, error) {
	if expected == actual {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	})
}

// ColorDiff colors added and removed lines of a unified diff.
func ColorDiff(diff string, enabled bool) string {
	if !enabled {
		return diff
	}
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(paint(true, line, color.Bold))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(paint(true, line, color.FgCyan))
		case strings.HasPrefix(line, "+"):
			b.WriteString(paint(true, line, color.FgGreen))
		case strings.HasPrefix(line, "-"):
			b.WriteString(paint(true, line, color.FgRed))
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}
