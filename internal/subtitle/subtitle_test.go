package subtitle

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDecodeSRTExample(t *testing.T) {
	doc, err := Decode("1\n00:00:01,000 --> 00:00:03,500\nHello world\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Format != FormatSRT {
		t.Errorf("Format = %q, want srt", doc.Format)
	}
	if len(doc.Cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(doc.Cues))
	}
	want := Cue{Index: 1, Start: 1.0, End: 3.5, Text: "Hello world"}
	if doc.Cues[0] != want {
		t.Errorf("cue = %+v, want %+v", doc.Cues[0], want)
	}
}

func TestEncodeVTTExample(t *testing.T) {
	out := Encode([]Cue{{Start: 65.25, End: 70.0, Text: "ok"}}, FormatVTT)
	if !strings.HasPrefix(out, "WEBVTT\n\n") {
		t.Fatalf("missing header: %q", out)
	}
	lines := strings.Split(out, "\n")
	if lines[2] != "00:01:05.250 --> 00:01:10.000" {
		t.Errorf("timing line = %q", lines[2])
	}
	if lines[3] != "ok" {
		t.Errorf("text line = %q", lines[3])
	}
}

func TestEncodeSRT(t *testing.T) {
	cues := []Cue{
		{Index: 7, Start: 0, End: 1.5, Text: "first"},
		{Index: 3, Start: 3661.007, End: 3662, Text: "second\nline"},
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nfirst\n\n" +
		"2\n01:01:01,007 --> 01:01:02,000\nsecond\nline\n\n"
	if got := Encode(cues, FormatSRT); got != want {
		t.Errorf("Encode =\n%q\nwant\n%q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	cues := []Cue{
		{Start: 0, End: 0.001, Text: "a"},
		{Start: 1.001, End: 2.999, Text: "multi\nline text"},
		{Start: 59.5, End: 61.25, Text: "¿Qué tal?"},
		{Start: 3599.999, End: 7322.123, Text: "long"},
		{Start: 10, End: 10, Text: "zero length"},
	}

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			doc, err := Decode(Encode(cues, format))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if doc.Format != format {
				t.Errorf("detected %q, want %q", doc.Format, format)
			}
			if len(doc.Cues) != len(cues) {
				t.Fatalf("got %d cues, want %d", len(doc.Cues), len(cues))
			}
			for i, got := range doc.Cues {
				if got.Index != i+1 {
					t.Errorf("cue %d: index = %d", i, got.Index)
				}
				if math.Abs(got.Start-cues[i].Start) > 1e-9 || math.Abs(got.End-cues[i].End) > 1e-9 {
					t.Errorf("cue %d: times = %v-%v, want %v-%v", i, got.Start, got.End, cues[i].Start, cues[i].End)
				}
				if got.Text != cues[i].Text {
					t.Errorf("cue %d: text = %q, want %q", i, got.Text, cues[i].Text)
				}
			}
		})
	}
}

func TestEncodeCollapsesBlankLines(t *testing.T) {
	cues := []Cue{
		{Start: 1, End: 2, Text: "first\n\n\nsecond"},
		{Start: 2, End: 3, Text: "a\n \n\t\n\nb\n\nc"},
		{Start: 3, End: 4, Text: "next"},
	}
	want := []string{"first\nsecond", "a\nb\nc", "next"}

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			doc, err := Decode(Encode(cues, format))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(doc.Cues) != len(want) {
				t.Fatalf("got %d cues, want %d: %+v", len(doc.Cues), len(want), doc.Cues)
			}
			for i, got := range doc.Cues {
				if got.Text != want[i] {
					t.Errorf("cue %d: text = %q, want %q", i, got.Text, want[i])
				}
			}
		})
	}
}

func TestEncodeTruncatesToMilliseconds(t *testing.T) {
	out := Encode([]Cue{{Start: 1.23456, End: 2.9999, Text: "x"}}, FormatSRT)
	if !strings.Contains(out, "00:00:01,234 --> 00:00:02,999") {
		t.Errorf("unexpected timing: %q", out)
	}
}

func TestDecodeSkipsMalformedBlocks(t *testing.T) {
	content := strings.Join([]string{
		"1\n00:00:01,000 --> 00:00:02,000\nfirst",
		"2\n00:00:03,000 --> 00:00:04,000",
		"3\nnot a timestamp\nbroken",
		"4\n00:00:05.000 --> 00:00:06.000\nsecond",
		"5\n00:00:09,000 --> 00:00:08,000\nbackwards",
		"6\n00:00:10,00 --> 00:00:11,000\nshort fraction",
		"7\n00:00:12,000 --> 00:00:13,000\nthird",
	}, "\n\n")

	doc, err := Decode(content)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var texts []string
	for _, c := range doc.Cues {
		texts = append(texts, c.Text)
	}
	if got := strings.Join(texts, ","); got != "first,second,third" {
		t.Errorf("texts = %q", got)
	}
	for i, c := range doc.Cues {
		if c.Index != i+1 {
			t.Errorf("cue %d index = %d", i, c.Index)
		}
	}
}

func TestDecodeVTT(t *testing.T) {
	content := "WEBVTT\nKind: captions\n\n" +
		"intro\n00:00:01.000 --> 00:00:02.500 align:start\nHello\n\n" +
		"NOTE this is a comment\n\n" +
		"00:00:03,000 --> 00:00:04.000\nWorld\n  \n"

	doc, err := Decode(content)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Format != FormatVTT {
		t.Errorf("Format = %q", doc.Format)
	}
	want := []Cue{
		{Index: 1, Start: 1, End: 2.5, Text: "Hello"},
		{Index: 2, Start: 3, End: 4, Text: "World"},
	}
	if len(doc.Cues) != len(want) {
		t.Fatalf("got %d cues: %+v", len(doc.Cues), doc.Cues)
	}
	for i := range want {
		if doc.Cues[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, doc.Cues[i], want[i])
		}
	}
}

func TestDecodeCRLFAndBOM(t *testing.T) {
	doc, err := Decode("\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nHi\r\n\r\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(doc.Cues) != 1 || doc.Cues[0].Text != "Hi" {
		t.Errorf("cues = %+v", doc.Cues)
	}
}

func TestDecodeUndetected(t *testing.T) {
	tests := []string{
		"",
		"just some text",
		"1\n00:00:01.000 --> 00:00:02.000\nperiod separator without header",
		"00:00:01,000 --> 00:00:02,000\nno index",
	}
	for _, content := range tests {
		if _, err := Decode(content); !errors.Is(err, ErrFormatUndetected) {
			t.Errorf("Decode(%q) err = %v, want ErrFormatUndetected", content, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"srt", FormatSRT, true},
		{".VTT", FormatVTT, true},
		{"webvtt", FormatVTT, true},
		{"ass", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestConvert(t *testing.T) {
	out, err := Convert("1\n00:00:01,000 --> 00:00:03,500\nHello world\n", FormatVTT)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "WEBVTT\n\n00:00:01.000 --> 00:00:03.500\nHello world\n\n"
	if out != want {
		t.Errorf("Convert = %q, want %q", out, want)
	}
}
