package subtitle

import (
	"regexp"
	"strconv"
	"strings"
)

const vttHeader = "WEBVTT"

var (
	// srtSignature matches an index line followed by a comma-separated timestamp.
	srtSignature = regexp.MustCompile(`^\d+[ \t]*\n\d{2}:\d{2}:\d{2},`)
	blockSplit   = regexp.MustCompile(`\n[ \t]*\n`)
	blankRun     = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
	timingLine   = regexp.MustCompile(`(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})`)
)

// Detect reports the format of content without decoding it.
func Detect(content string) (Format, error) {
	s := strings.TrimSpace(normalize(content))
	switch {
	case strings.HasPrefix(s, vttHeader):
		return FormatVTT, nil
	case srtSignature.MatchString(s):
		return FormatSRT, nil
	}
	return "", ErrFormatUndetected
}

// Decode parses SRT or WebVTT content. Blocks that are too short, carry an
// unparseable timing line, have no text, or end before they start are skipped.
// Returned cues are numbered by their position in the decoded list.
func Decode(content string) (Document, error) {
	format, err := Detect(content)
	if err != nil {
		return Document{}, err
	}

	blocks := blockSplit.Split(strings.TrimSpace(normalize(content)), -1)
	if format == FormatVTT && len(blocks) > 0 {
		// The header block may carry metadata lines after WEBVTT.
		blocks = blocks[1:]
	}

	doc := Document{Format: format}
	for _, block := range blocks {
		cue, ok := parseBlock(block)
		if !ok {
			continue
		}
		cue.Index = len(doc.Cues) + 1
		doc.Cues = append(doc.Cues, cue)
	}
	return doc, nil
}

// parseBlock reads one cue. The first line is the timing line unless it lacks
// an arrow, in which case it is a cue identifier and the timing line follows.
func parseBlock(block string) (Cue, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	timing := 0
	if !strings.Contains(lines[0], "-->") {
		timing = 1
	}
	if len(lines) < timing+2 {
		return Cue{}, false
	}

	m := timingLine.FindStringSubmatch(lines[timing])
	if m == nil {
		return Cue{}, false
	}
	start := toSeconds(m[1], m[2], m[3], m[4])
	end := toSeconds(m[5], m[6], m[7], m[8])
	if end < start {
		return Cue{}, false
	}

	text := strings.TrimSpace(strings.Join(lines[timing+1:], "\n"))
	if text == "" {
		return Cue{}, false
	}
	return Cue{Start: start, End: end, Text: text}, true
}

func toSeconds(h, m, s, ms string) float64 {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	millis, _ := strconv.Atoi(ms)
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000
}

func normalize(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}
