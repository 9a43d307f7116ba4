package transcribe

import "testing"

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"AUTO", "", false},
		{"spanish", "es", false},
		{"Japanese", "ja", false},
		{"es", "es", false},
		{"pt-BR", "pt", false},
		{"en_US", "en", false},
		{"not a language", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeLanguage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeLanguage(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	if langs[0].ID != LanguageAuto {
		t.Errorf("first language = %q, want auto", langs[0].ID)
	}
	if len(langs) != len(languageNames)+1 {
		t.Errorf("got %d languages", len(langs))
	}
	for _, l := range langs[1:] {
		if l.Name == "" || l.Code == "" {
			t.Errorf("incomplete entry %+v", l)
		}
		if l.ID == "spanish" && l.Name != "Spanish" {
			t.Errorf("spanish name = %q", l.Name)
		}
	}
}
