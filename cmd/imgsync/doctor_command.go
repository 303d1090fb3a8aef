package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgsync/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration paths and external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failures := 0
			line := func(label string, kind statusKind, message string) {
				if kind == statusError {
					failures++
				}
				fmt.Fprintln(out, renderStatusLine(label, kind, message, colorize))
			}

			if ctx.configPath != "" {
				line("Config", statusInfo, ctx.configPath)
			}
			if info, err := os.Stat(cfg.Paths.SourceDir); err != nil || !info.IsDir() {
				line("Source directory", statusError, cfg.Paths.SourceDir+" not found")
			} else {
				line("Source directory", statusOK, cfg.Paths.SourceDir)
			}
			if info, err := os.Stat(cfg.OutputDir()); err == nil && info.IsDir() {
				line("Output directory", statusOK, cfg.OutputDir())
			} else {
				line("Output directory", statusWarn, cfg.OutputDir()+" will be created on first run")
			}

			for _, status := range deps.CheckBinaries([]deps.Requirement{
				deps.FFmpegRequirement(cfg.Transcode.FFmpegBinary, cfg.Transcode.Enabled),
			}) {
				switch {
				case status.Available:
					line(status.Name, statusOK, status.Path)
				case status.Optional:
					line(status.Name, statusInfo, status.Detail+" (transcoding disabled)")
				default:
					line(status.Name, statusError, status.Detail)
				}
				if status.Available && cfg.Transcode.Enabled {
					encoder := deps.CheckEncoder(cmd.Context(), status.Command, deps.EncoderForFormat(cfg.Transcode.Format))
					if encoder.Available {
						line(encoder.Name, statusOK, "")
					} else {
						line(encoder.Name, statusError, encoder.Detail)
					}
				}
			}

			if failures > 0 {
				return fmt.Errorf("doctor found %d problem(s)", failures)
			}
			return nil
		},
	}
}
