package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imgsync/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the fetch history database",
	}
	manifestCmd.AddCommand(newManifestListCommand(ctx))
	manifestCmd.AddCommand(newManifestRunsCommand(ctx))
	return manifestCmd
}

func (c *commandContext) openManifest(cmd *cobra.Command) (*manifest.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Manifest.Enabled {
		return nil, errors.New("manifest is disabled; set manifest.enabled = true in the config")
	}
	return manifest.Open(cmd.Context(), cfg.Manifest.Path)
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently fetched assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openManifest(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			fetches, err := store.ListFetches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, fetches)
			}
			out := cmd.OutOrStdout()
			if len(fetches) == 0 {
				fmt.Fprintln(out, "No fetches recorded")
				return nil
			}
			rows := make([][]string, 0, len(fetches))
			for _, f := range fetches {
				rows = append(rows, []string{
					f.FetchedAt.Local().Format(time.DateTime),
					f.FileName,
					humanize.Bytes(uint64(max(f.Bytes, 0))),
					yesNo(f.Transcoded),
					f.URL,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Fetched", "File", "Size", "Transcoded", "URL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit entries as JSON")
	return cmd
}

func newManifestRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openManifest(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					humanize.Time(r.StartedAt),
					r.Duration.String(),
					strconv.Itoa(r.Discovered),
					strconv.Itoa(r.Fetched),
					strconv.Itoa(r.Reused),
					strconv.Itoa(r.Failed),
					strconv.Itoa(r.DocumentsUpdated),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Duration", "Discovered", "Fetched", "Reused", "Failed", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show (0 for all)")
	return cmd
}
