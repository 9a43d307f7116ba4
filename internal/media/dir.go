package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// DirLibrary treats every subdirectory of root as an item whose audio files
// are its sources, ordered by natural file name order.
type DirLibrary struct {
	root string
}

func NewDirLibrary(root string) *DirLibrary {
	return &DirLibrary{root: root}
}

func (l *DirLibrary) AudioSources(ctx context.Context, itemID string) ([]AudioSource, error) {
	dir := filepath.Join(l.root, itemID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("read item dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsAudioFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })

	sources := make([]AudioSource, 0, len(names))
	for _, n := range names {
		sources = append(sources, AudioSource{Path: filepath.Join(dir, n), DisplayName: n})
	}
	return sources, nil
}

// naturalLess compares names so that "ch2" sorts before "ch10".
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ra, rb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ra) && unicode.IsDigit(rb) {
			na, restA := leadingDigits(a)
			nb, restB := leadingDigits(b)
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = restA, restB
			continue
		}
		la, lb := unicode.ToLower(ra), unicode.ToLower(rb)
		if la != lb {
			return la < lb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

// leadingDigits splits s after its leading digit run, dropping leading zeros
// from the number.
func leadingDigits(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n := strings.TrimLeft(s[:i], "0")
	return n, s[i:]
}
