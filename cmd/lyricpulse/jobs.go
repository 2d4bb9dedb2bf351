package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lyricpulse/lyricpulse/internal/api"
	"github.com/lyricpulse/lyricpulse/internal/config"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs on the running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var resp api.JobsResponse
			if err := apiGet(cmd.Context(), cfg, "/jobs?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(resp.Jobs))
			for _, j := range resp.Jobs {
				rows = append(rows, []string{j.ID[:min(8, len(j.ID))], j.Status, j.Stage, j.Filename, j.OutputName, j.CreatedAt})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Status", "Stage", "File", "Output", "Created"},
				rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var j api.JobResponse
			if err := apiGet(cmd.Context(), cfg, "/jobs/"+url.PathEscape(args[0]), &j); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"ID", j.ID},
				{"Status", j.Status},
				{"Stage", j.Stage},
				{"File", j.Filename},
				{"Output", j.OutputName},
				{"Segments", fmt.Sprintf("%d (%d matched)", j.Segments, j.Matched)},
				{"Tempo", fmt.Sprintf("%.1f BPM", j.Tempo)},
				{"Error", j.Error},
				{"Created", j.CreatedAt},
				{"Finished", j.FinishedAt},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
			return nil
		},
	})
	return cmd
}

// apiGet calls the local server and decodes a JSON response into dst.
func apiGet(ctx context.Context, cfg config.Config, path string, dst any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	base := "http://" + net.JoinHostPort(cfg.Host(), strconv.Itoa(cfg.Port()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	if token := cfg.APIToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return fmt.Errorf("connect to %s: is `lyricpulse serve` running? (%w)", base, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
