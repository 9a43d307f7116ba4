package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ScratchPruner removes leftovers of crashed engine invocations (converted
// audio, driver scripts, result files) from the scratch directory.
type ScratchPruner struct {
	dir       string
	retention time.Duration
	keep      map[string]bool
	interval  time.Duration
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewScratchPruner creates a pruner that deletes scratch files older than
// retention. Files named in keep are never removed.
func NewScratchPruner(dir string, retention time.Duration, keep []string, log zerolog.Logger) *ScratchPruner {
	k := make(map[string]bool, len(keep))
	for _, name := range keep {
		k[name] = true
	}
	return &ScratchPruner{
		dir:       dir,
		retention: retention,
		keep:      k,
		interval:  1 * time.Hour,
		log:       log.With().Str("component", "scratch-pruner").Logger(),
		stop:      make(chan struct{}),
	}
}

func (p *ScratchPruner) Start() {
	go p.loop()
}

func (p *ScratchPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *ScratchPruner) loop() {
	// Run once on startup to clear any backlog from downtime
	p.prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-p.stop:
			return
		}
	}
}

// prune returns the number of removed files.
func (p *ScratchPruner) prune() int {
	if p.retention <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-p.retention)
	var prunedCount int
	var prunedBytes int64

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if e.IsDir() || p.keep[e.Name()] {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(p.dir, e.Name())); err == nil {
			prunedCount++
			prunedBytes += info.Size()
		}
	}

	if prunedCount > 0 {
		p.log.Info().
			Int("pruned", prunedCount).
			Str("freed", humanizeBytes(prunedBytes)).
			Msg("scratch prune complete")
	}
	return prunedCount
}

func humanizeBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
