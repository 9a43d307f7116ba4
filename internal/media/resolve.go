package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// ResolveFile finds a library audio file on disk. Database-backed libraries
// may store paths relative to the library root, or absolute paths recorded
// on another host.
// Priority: 1) absolute path as stored  2) root + path  3) root + any suffix
// of the stored path.
// It returns "" when nothing exists.
func ResolveFile(root, stored string) string {
	if stored == "" {
		return ""
	}

	if filepath.IsAbs(stored) {
		if _, err := os.Stat(stored); err == nil {
			return stored
		}
	}
	if root == "" {
		return ""
	}

	full := filepath.Join(root, stored)
	if _, err := os.Stat(full); err == nil {
		return full
	}

	// e.g. /mnt/old/library/book-1/01.mp3 → book-1/01.mp3, then 01.mp3
	parts := strings.Split(filepath.ToSlash(stored), "/")
	for i := 1; i < len(parts); i++ {
		candidate := filepath.Join(root, filepath.Join(parts[i:]...))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// RootedLibrary resolves the paths returned by another library against a
// root directory. Unresolvable sources keep their display name but lose the
// path, which fails the job with a clear message instead of an engine error.
type RootedLibrary struct {
	Library
	Root string
}

func (l RootedLibrary) AudioSources(ctx context.Context, itemID string) ([]AudioSource, error) {
	sources, err := l.Library.AudioSources(ctx, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]AudioSource, len(sources))
	for i, s := range sources {
		out[i] = s
		if s.DisplayName == "" {
			out[i].DisplayName = DisplayName(s.Path)
		}
		out[i].Path = ResolveFile(l.Root, s.Path)
	}
	return out, nil
}
