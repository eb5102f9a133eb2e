package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-kokoro-tts/internal/tts"
)

func newVoicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List voices from the voice manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			vm, err := tts.NewVoiceManager(cfg.Paths.VoicesManifest)
			if err != nil {
				return err
			}

			voices := vm.ListVoices()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(voices)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tLANG\tLICENSE\tPATH")

			for _, v := range voices {
				lang := v.Lang
				if lang == "" {
					lang = tts.DefaultLang
				}

				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, lang, v.License, v.Path)
			}

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print voices as JSON")

	return cmd
}
