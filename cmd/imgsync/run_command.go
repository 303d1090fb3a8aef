package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imgsync/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror remote images and rewrite documents to the local copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, err := ctx.newRunner(runCtx, cmd, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			summary, err := r.pipeline.Run(runCtx, pipeline.Options{DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, summary)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSummary(summary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Discover and check local assets without fetching or writing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the run summary as JSON")
	return cmd
}

func formatSummary(summary pipeline.Summary) string {
	pairs := [][2]string{
		{"Documents", strconv.Itoa(summary.Documents)},
		{"Images discovered", strconv.Itoa(summary.Discovered)},
	}
	if summary.DryRun {
		pairs = append(pairs,
			[2]string{"Already local", strconv.Itoa(summary.Reused)},
			[2]string{"Would fetch", strconv.Itoa(len(summary.Pending))},
		)
	} else {
		pairs = append(pairs,
			[2]string{"Fetched", strconv.Itoa(summary.Fetched)},
			[2]string{"Reused", strconv.Itoa(summary.Reused)},
			[2]string{"Failed", strconv.Itoa(summary.Failed)},
			[2]string{"Downloaded", humanize.Bytes(uint64(max(summary.Bytes, 0)))},
			[2]string{"Documents updated", strconv.Itoa(summary.Updated)},
		)
	}
	if summary.Skipped > 0 {
		pairs = append(pairs, [2]string{"Documents skipped", strconv.Itoa(summary.Skipped)})
	}
	pairs = append(pairs, [2]string{"Duration", summary.Duration.Round(time.Millisecond).String()})

	var b strings.Builder
	b.WriteString(renderKeyValues(pairs))
	writeList(&b, "Would fetch", summary.Pending)
	writeList(&b, "Failed", summary.FailedURLs)
	writeList(&b, "Updated", summary.UpdatedDocuments)
	if !summary.DryRun && !summary.Complete() {
		fmt.Fprintf(&b, "\nWarning: %d of %d images mapped; unmapped references keep their remote URLs.", summary.Mapped, summary.Discovered)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:", title)
	for _, item := range items {
		fmt.Fprintf(b, "\n  %s", item)
	}
}
