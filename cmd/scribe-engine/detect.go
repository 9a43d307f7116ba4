package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe for the transcription engine, converter and GPU acceleration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			engine := ctx.newEngine(cmd.Context(), cfg)
			caps := engine.Capabilities()
			models := engine.Models().Models()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"available":    caps.Available(),
					"capabilities": caps,
					"modelsDir":    engine.Models().Dir(),
					"models":       models,
				})
			}

			invocation := strings.Join(caps.Invocation, " ")
			if invocation == "" {
				invocation = "not found"
			}
			converter := caps.ConverterPath
			if converter == "" {
				converter = "not found"
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Capability", "Value"},
				[][]string{
					{"Engine", invocation},
					{"Interpreter", caps.Interpreter},
					{"Device", string(caps.Device())},
					{"Converter", converter},
					{"Models dir", engine.Models().Dir()},
				},
				nil,
			))

			rows := make([][]string, 0, len(models))
			for _, m := range models {
				installed := ""
				if m.Installed {
					installed = "yes"
				}
				name := m.Name
				if m.Recommended {
					name += " *"
				}
				rows = append(rows, []string{name, string(m.State), installed})
			}
			fmt.Fprintln(out, renderTable([]string{"Model", "State", "Installed"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}
