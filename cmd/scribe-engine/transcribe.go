package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snarg/scribe-engine/internal/jobs"
	"github.com/snarg/scribe-engine/internal/media"
	"github.com/snarg/scribe-engine/internal/storage"
)

// fileLibrary serves a fixed list of files as the only item.
type fileLibrary struct {
	itemID  string
	sources []media.AudioSource
}

func (l fileLibrary) AudioSources(_ context.Context, itemID string) ([]media.AudioSource, error) {
	if itemID != l.itemID {
		return nil, fmt.Errorf("%w: %s", media.ErrItemNotFound, itemID)
	}
	return l.sources, nil
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var opts jobs.Options
	var itemID string
	var outDir string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>...",
		Short: "Transcribe audio files into SRT and WebVTT subtitles",
		Long: "Transcribe runs one job over the given files, in order, and writes\n" +
			"<out-dir>/<item>/<language>.srt and .vtt.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()

			sources := make([]media.AudioSource, 0, len(args))
			for _, a := range args {
				abs, err := filepath.Abs(a)
				if err != nil {
					return err
				}
				if _, err := os.Stat(abs); err != nil {
					return fmt.Errorf("audio file %q: %w", a, err)
				}
				sources = append(sources, media.AudioSource{Path: abs, DisplayName: media.DisplayName(abs)})
			}
			if itemID == "" {
				base := filepath.Base(args[0])
				itemID = strings.TrimSuffix(base, filepath.Ext(base))
			}
			if outDir == "" {
				outDir = cfg.SubtitlesDir
			}

			engine := ctx.newEngine(cmd.Context(), cfg)
			done := make(chan jobs.Job, 1)
			manager := jobs.NewManager(jobs.ManagerOptions{
				Library:   fileLibrary{itemID: itemID, sources: sources},
				Engine:    engine,
				Artifacts: storage.NewLocalStore(outDir),
				Notifier: jobs.NotifierFunc(func(j jobs.Job) {
					switch j.Status {
					case jobs.StatusCompleted, jobs.StatusError:
						done <- j
					case jobs.StatusProcessing:
						log.Info().Int("progress", j.Progress).Msg("transcribing")
					}
				}),
				DefaultLanguage:  cfg.DefaultLanguage,
				DefaultModel:     cfg.DefaultModel,
				OffsetTimestamps: cfg.OffsetSourceTimestamps,
				MaxConcurrent:    1,
				QueueSize:        1,
				Log:              log,
			})
			defer manager.Close()

			if _, err := manager.Submit(cmd.Context(), itemID, opts); err != nil {
				return err
			}
			job := <-done
			if job.Status == jobs.StatusError {
				return fmt.Errorf("transcription failed: %s", job.Error)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d cues\n", *job.CueCount)
			fmt.Fprintln(out, job.ArtifactPaths.SRT)
			fmt.Fprintln(out, job.ArtifactPaths.VTT)
			return nil
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "Item ID for the output folder (default: first file's name)")
	cmd.Flags().StringVarP(&opts.Language, "language", "l", "", "Spoken language, or auto (default from DEFAULT_LANGUAGE)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Engine model (default from DEFAULT_MODEL)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Retry a model whose preparation failed earlier")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Subtitle output directory (default SUBTITLES_DIR)")
	return cmd
}
