package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snarg/scribe-engine/internal/subtitle"
)

func newConvertCommand() *cobra.Command {
	var to string
	var output string

	cmd := &cobra.Command{
		Use:   "convert <subtitle-file>",
		Short: "Convert a subtitle file between SRT and WebVTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := subtitle.ParseFormat(to)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			converted, err := subtitle.Convert(string(data), format)
			if err != nil {
				return fmt.Errorf("convert %s: %w", args[0], err)
			}

			switch output {
			case "-":
				_, err = fmt.Fprint(cmd.OutOrStdout(), converted)
				return err
			case "":
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + format.Ext()
				if output == args[0] {
					return fmt.Errorf("%s is already %s; pass -o to choose an output path", args[0], format)
				}
			}
			if err := os.WriteFile(output, []byte(converted), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "vtt", "Target format: srt or vtt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path; - for stdout (default: input with the new extension)")
	return cmd
}
