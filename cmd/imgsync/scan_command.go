package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"imgsync/internal/pipeline"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List remote image references without fetching anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.newRunner(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.pipeline.Scan(cmd.Context())
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if len(report.References) == 0 {
				fmt.Fprintf(out, "No remote images found in %d documents\n", report.Documents)
				return nil
			}
			cfg, _ := ctx.ensureConfig()
			fmt.Fprintln(out, renderReferences(cfg.Paths.SourceDir, report.References))
			fmt.Fprintf(out, "%d references in %d documents", len(report.References), report.Documents)
			if report.Skipped > 0 {
				fmt.Fprintf(out, " (%d skipped)", report.Skipped)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit references as JSON")
	return cmd
}

func renderReferences(root string, refs []pipeline.Reference) string {
	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		doc := ref.Document
		if rel, err := filepath.Rel(root, ref.Document); err == nil {
			doc = filepath.ToSlash(rel)
		}
		rows = append(rows, []string{doc, ref.Source, ref.URL, yesNo(ref.Local)})
	}
	return renderTable(
		[]string{"Document", "Source", "URL", "Local"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
