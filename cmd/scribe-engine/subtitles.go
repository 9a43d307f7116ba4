package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snarg/scribe-engine/internal/jobs"
	"github.com/snarg/scribe-engine/internal/storage"
	"github.com/snarg/scribe-engine/internal/subtitle"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Inspect and remove stored subtitle artifacts",
	}
	cmd.AddCommand(newSubtitlesListCommand(ctx))
	cmd.AddCommand(newSubtitlesDeleteCommand(ctx))
	return cmd
}

// artifactManager builds a job manager that is only used for artifact
// access; it never runs jobs.
func (c *commandContext) artifactManager() (*jobs.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log := c.logger()
	artifacts, _, err := storage.New(cfg.S3, cfg.SubtitlesDir, log)
	if err != nil {
		return nil, err
	}
	return jobs.NewManager(jobs.ManagerOptions{Artifacts: artifacts, MaxConcurrent: 1, Log: log}), nil
}

func newSubtitlesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <item-id>",
		Short: "List the languages and formats stored for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.artifactManager()
			if err != nil {
				return err
			}
			defer m.Close()

			artifacts := m.ListArtifacts(cmd.Context(), args[0])
			if len(artifacts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No subtitles for %s\n", args[0])
				return nil
			}
			headers := []string{"Language"}
			for _, f := range subtitle.Formats {
				headers = append(headers, string(f))
			}
			rows := make([][]string, 0, len(artifacts))
			for _, a := range artifacts {
				row := []string{a.Language}
				for _, f := range subtitle.Formats {
					mark := "-"
					if a.Formats[string(f)] {
						mark = "yes"
					}
					row = append(row, mark)
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}

func newSubtitlesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id> <language>",
		Short: "Delete both subtitle formats for one language",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := jobs.ValidateIdentifier("language", args[1]); err != nil {
				return err
			}
			m, err := ctx.artifactManager()
			if err != nil {
				return err
			}
			defer m.Close()

			if !m.DeleteArtifacts(cmd.Context(), args[0], args[1]) {
				return fmt.Errorf("failed to delete %s subtitles for %s", args[1], args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s subtitles for %s\n", args[1], args[0])
			return nil
		},
	}
}
