package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgsync/internal/assets"
)

func newHashCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "hash <url>...",
		Short: "Show the local asset name and public path for URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := assets.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}

			type entry struct {
				URL        string `json:"url"`
				Name       string `json:"name"`
				PublicPath string `json:"public_path"`
				Local      bool   `json:"local"`
			}
			entries := make([]entry, 0, len(args))
			rows := make([][]string, 0, len(args))
			for _, raw := range args {
				asset, local := store.Lookup(raw)
				entries = append(entries, entry{URL: raw, Name: asset.Name, PublicPath: asset.PublicPath, Local: local})
				rows = append(rows, []string{raw, asset.Name, asset.PublicPath, yesNo(local)})
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"URL", "File", "Public path", "Local"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	return cmd
}
