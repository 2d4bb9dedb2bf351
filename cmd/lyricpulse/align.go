package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lyricpulse/lyricpulse/internal/export"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var lyricsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "align AUDIO",
		Short: "Transcribe audio and correct it against official lyrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if format != "table" {
				if _, err := export.ParseFormat(format); err != nil {
					return err
				}
			}

			text, err := readLyricsFlag(lyricsPath)
			if err != nil {
				return err
			}

			eng := newEngine(cfg, ctx.logger(cfg))
			segs, err := eng.driver.Align(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			return writeSegments(cmd.OutOrStdout(), segs, format)
		},
	}

	cmd.Flags().StringVarP(&lyricsPath, "lyrics", "l", "", "Official lyrics text file")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json or srt")
	return cmd
}

func readLyricsFlag(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	return staging.ReadLyrics(path)
}

func writeSegments(out io.Writer, segs []lyrics.ReconciledSegment, format string) error {
	switch format {
	case export.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(segs)
	case export.FormatSRT:
		return export.WriteSRT(out, segs)
	}

	rows := make([][]string, 0, len(segs))
	matched := 0
	for i, s := range segs {
		if s.Matched {
			matched++
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.2f", s.Start),
			fmt.Sprintf("%.2f", s.End),
			fmt.Sprintf("%.0f", s.Score),
			yesNo(s.Matched),
			s.Text,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"#", "Start", "End", "Score", "Lyric", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d segments, %d matched to lyrics\n", len(segs), matched)
	return nil
}
