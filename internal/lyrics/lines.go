package lyrics

import "strings"

// SplitLines splits lyric text into its non-empty lines, each stripped of
// surrounding whitespace. Order is preserved and blank lines are dropped.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
