package transcribe

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageAuto lets the engine detect the spoken language.
const LanguageAuto = "auto"

// languageNames maps the English names accepted by the API to ISO codes.
var languageNames = map[string]string{
	"spanish":    "es",
	"english":    "en",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"russian":    "ru",
	"arabic":     "ar",
}

// NormalizeLanguage turns a language name, code or BCP 47 tag into the ISO
// 639-1 code the engine expects. "auto" and "" yield "", meaning detect.
func NormalizeLanguage(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == LanguageAuto {
		return "", nil
	}
	if code, ok := languageNames[s]; ok {
		return code, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("unknown language %q: %w", s, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("unknown language %q", s)
	}
	return base.String(), nil
}

// Language is one entry of the supported language list.
type Language struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

// Languages lists the languages offered to clients, auto-detection first.
func Languages() []Language {
	out := []Language{{ID: LanguageAuto, Name: "Auto-detect"}}
	namer := display.English.Languages()
	for _, id := range []string{
		"spanish", "english", "french", "german", "italian", "portuguese",
		"chinese", "japanese", "korean", "russian", "arabic",
	} {
		code := languageNames[id]
		out = append(out, Language{ID: id, Code: code, Name: namer.Name(language.MustParse(code))})
	}
	return out
}
