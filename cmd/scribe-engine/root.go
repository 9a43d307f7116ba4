package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "scribe-engine",
		Short:         "Audio transcription service producing SRT and WebVTT subtitles",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.overrides.EnvFile, "env-file", "", "Path to .env file (default .env)")
	flags.StringVar(&ctx.overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&ctx.overrides.MetadataDir, "metadata-dir", "", "Metadata directory (overrides METADATA_DIR)")
	flags.StringVar(&ctx.overrides.ModelsDir, "models-dir", "", "Engine model directory (overrides MODELS_DIR)")
	flags.StringVar(&ctx.overrides.FFmpegPath, "ffmpeg", "", "Converter binary (overrides FFMPEG_PATH)")
	flags.StringVar(&ctx.overrides.DefaultModel, "default-model", "", "Default engine model (overrides DEFAULT_MODEL)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newSubtitlesCommand(ctx))

	return rootCmd
}
