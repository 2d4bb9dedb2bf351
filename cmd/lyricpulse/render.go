package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lyricpulse/lyricpulse/internal/export"
	"github.com/lyricpulse/lyricpulse/internal/pipeline"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var lyricsPath string
	var outDir string

	cmd := &cobra.Command{
		Use:   "render AUDIO",
		Short: "Run the full pipeline once and write the captioned video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.OutputsDir()
			}
			outDir, err = export.PrepareOutputDir(outDir)
			if err != nil {
				return err
			}

			audio := args[0]
			errOut := cmd.ErrOrStderr()
			eng := newEngine(cfg, ctx.logger(cfg))
			res, err := eng.driver.Run(cmd.Context(), pipeline.Request{
				AudioPath:     audio,
				AudioFilename: filepath.Base(audio),
				LyricsPath:    lyricsPath,
				OutputDir:     outDir,
				Observer: func(s pipeline.State) {
					fmt.Fprintf(errOut, "-> %s\n", s)
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"Output", "Tempo", "Beats", "Duration", "Segments", "Matched", "Elapsed"},
				[][]string{{
					res.OutputPath,
					fmt.Sprintf("%.1f BPM", res.Beats.Tempo),
					fmt.Sprintf("%d", len(res.Beats.Times)),
					fmt.Sprintf("%.1fs", res.Audio.Duration),
					fmt.Sprintf("%d", len(res.Segments)),
					fmt.Sprintf("%d", res.Matched),
					res.Elapsed.Round(10 * time.Millisecond).String(),
				}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&lyricsPath, "lyrics", "l", "", "Official lyrics text file")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: configured outputs dir)")
	_ = cmd.MarkFlagRequired("lyrics")
	return cmd
}
