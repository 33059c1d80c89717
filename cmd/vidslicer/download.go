package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidslicer/vidslicer/internal/media"
)

type downloadFlags struct {
	format   string
	trim     string
	audio    bool
	audioExt string
	out      string
	saveClip bool
}

func newDownloadCmd(a *app) *cobra.Command {
	flags := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download a video, or a trimmed part of it, into the download directory",
		Example: `  vidslicer download https://example.com/watch?v=abc
  vidslicer download --trim 1:30-2:00 --format 137 https://example.com/watch?v=abc
  vidslicer download --audio --audio-ext m4a https://example.com/watch?v=abc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.download(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.format, "format", "", "Video format id (default: the last listed video format)")
	f.StringVar(&flags.trim, "trim", "", "Trim range as start-end, e.g. 10-40, 1:30-2:00 or -0:45")
	f.BoolVar(&flags.audio, "audio", false, "Download audio only")
	f.StringVar(&flags.audioExt, "audio-ext", media.DefaultAudioExt, "Audio container when --audio is set")
	f.StringVar(&flags.out, "out", "", "Output directory (default: the configured download directory)")
	f.BoolVar(&flags.saveClip, "save-clip", false, "Record the download in the clip history")
	return cmd
}

func (a *app) download(cmd *cobra.Command, url string, flags *downloadFlags) error {
	dir := a.cfg.DownloadDir()
	if flags.out != "" {
		dir = flags.out
	}

	ctrl, _, err := a.newController(dir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	md, err := inspect(ctx, ctrl, url)
	if err != nil {
		return err
	}

	if flags.format != "" {
		if err := ctrl.SelectFormat(media.FormatID(flags.format)); err != nil {
			return fmt.Errorf("format %q: %w", flags.format, err)
		}
	}
	if flags.trim != "" {
		r, err := media.ParseTrimRange(flags.trim, md.Duration)
		if err != nil {
			return err
		}
		if err := ctrl.SetTrimRange(r.Start, r.End); err != nil {
			return err
		}
	}
	ctrl.ToggleAudioOnly(flags.audio)
	ctrl.SelectAudioExt(flags.audioExt)

	if err := ctrl.Download(ctx); err != nil {
		return err
	}
	snap := ctrl.Snapshot()
	if snap.Failed {
		return sessionFailure(snap)
	}
	if snap.LastSavedPath == "" {
		return errors.New("nothing to download: no video format available, try --audio")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %s\n", snap.LastSavedPath)

	if !flags.saveClip {
		return nil
	}
	if err := ctrl.SaveClip(ctx); err != nil {
		return err
	}
	if snap = ctrl.Snapshot(); snap.Failed {
		return sessionFailure(snap)
	}
	fmt.Fprintln(out, snap.Status)
	return nil
}
