package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// Encode renders cues in the given format. Cues are renumbered from 1 in slice
// order; input indices are ignored. Times are truncated to whole milliseconds.
func Encode(cues []Cue, format Format) string {
	sep := ","
	var b strings.Builder
	if format == FormatVTT {
		sep = "."
		b.WriteString(vttHeader + "\n\n")
	}

	for i, cue := range cues {
		if format != FormatVTT {
			fmt.Fprintf(&b, "%d\n", i+1)
		}
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(cue.Start, sep), formatTimestamp(cue.End, sep))
		// A blank line would end the block early.
		b.WriteString(blankRun.ReplaceAllString(strings.TrimSpace(normalize(cue.Text)), "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}

// formatTimestamp renders HH:MM:SS<sep>mmm. The small epsilon keeps values
// that were decoded from a millisecond literal (e.g. 1.001) from truncating
// one millisecond low because of binary float representation.
func formatTimestamp(seconds float64, sep string) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(math.Floor(seconds*1000 + 1e-6))
	ms := total % 1000
	s := total / 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", s/3600, (s%3600)/60, s%60, sep, ms)
}
