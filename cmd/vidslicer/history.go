package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vidslicer/vidslicer/internal/media"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved clips, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := a.backendClient()
			gw, err := a.historyGateway(client)
			if err != nil {
				return err
			}

			clips, err := gw.List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(clips) > limit {
				clips = clips[:limit]
			}
			out := cmd.OutOrStdout()
			if err := printHistory(out, clips, time.Now()); err != nil {
				return err
			}

			// Only the local store knows its full size.
			counter, ok := gw.(interface {
				Count(ctx context.Context) (int, error)
			})
			if !ok || len(clips) == 0 {
				return nil
			}
			total, err := counter.Count(cmd.Context())
			if err != nil {
				return err
			}
			if total > len(clips) {
				fmt.Fprintf(out, "\nShowing %d of %d clips.\n", len(clips), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", media.MaxHistory, "Maximum number of clips to list")
	return cmd
}

func printHistory(out io.Writer, clips []media.Clip, now time.Time) error {
	if len(clips) == 0 {
		fmt.Fprintln(out, "No clips saved yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFORMAT\tRANGE\tSAVED")
	for _, c := range clips {
		r := media.TrimRange{Start: c.StartTime, End: c.EndTime}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Title, c.FormatLabel, r, savedAgo(c.CreatedAt, now))
	}
	return tw.Flush()
}

func savedAgo(createdAt string, now time.Time) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, createdAt); err == nil {
			return humanize.RelTime(t, now, "ago", "from now")
		}
	}
	if createdAt == "" {
		return "-"
	}
	return createdAt
}
