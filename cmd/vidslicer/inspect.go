package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vidslicer/vidslicer/internal/media"
	"github.com/vidslicer/vidslicer/internal/session"
)

func newInspectCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect URL",
		Short: "Show the title, duration and available formats of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := a.newController(a.cfg.DownloadDir())
			if err != nil {
				return err
			}

			md, err := inspect(cmd.Context(), ctrl, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(md)
			}
			return printMetadata(out, md)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw metadata as JSON")
	return cmd
}

// inspect runs an inspection and turns a failed one into an error carrying
// the status the session reported.
func inspect(ctx context.Context, ctrl *session.Controller, url string) (*media.VideoMetadata, error) {
	if err := ctrl.Inspect(ctx, url); err != nil {
		return nil, err
	}

	snap := ctrl.Snapshot()
	if snap.Metadata == nil {
		if snap.Failed {
			return nil, sessionFailure(snap)
		}
		return nil, errors.New("no metadata returned")
	}
	return snap.Metadata, nil
}

func printMetadata(out io.Writer, md *media.VideoMetadata) error {
	fmt.Fprintf(out, "Title:    %s\n", md.Title)
	if md.Uploader != "" {
		fmt.Fprintf(out, "Uploader: %s\n", md.Uploader)
	}
	if md.Platform != "" {
		fmt.Fprintf(out, "Platform: %s\n", md.Platform)
	}
	fmt.Fprintf(out, "Duration: %s\n\n", media.FormatTimestamp(md.Duration))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tLABEL\tEXT\tSIZE")
	for _, f := range md.Formats.Video {
		fmt.Fprintf(tw, "video\t%s\t%s\t%s\t%s\n", f.ID, f.Label, f.Ext, sizeLabel(f.Filesize))
	}
	for _, f := range md.Formats.Audio {
		fmt.Fprintf(tw, "audio\t%s\t%s\t%s\t%s\n", f.ID, f.BitrateLabel(), f.Ext, sizeLabel(f.Filesize))
	}
	return tw.Flush()
}

// sizeLabel renders a backend-reported file size. Values that do not fit a
// byte count, including NaN and infinities, render as unknown.
func sizeLabel(size *float64) string {
	if size == nil {
		return "-"
	}
	s := *size
	if math.IsNaN(s) || s <= 0 || s >= math.MaxUint64 {
		return "-"
	}
	return humanize.Bytes(uint64(s))
}
