package media

import (
	"strconv"
	"strings"
)

const (
	untitled         = "untitled"
	defaultVideoTag  = "video"
	defaultVideoExt  = "mp4"
	filenameSanitize = '_'
)

// Selection is the part of the session state a file name depends on.
type Selection struct {
	Format    *Format
	AudioOnly bool
	AudioExt  string
	Range     TrimRange
}

// BuildFileName derives the download file name from metadata and selection.
// Missing fields fall back to defaults; it never fails.
func BuildFileName(md *VideoMetadata, sel Selection) string {
	title := ""
	if md != nil {
		title = SanitizeTitle(md.Title)
	}
	if title == "" {
		title = untitled
	}

	var suffix, ext string
	if sel.AudioOnly {
		suffix = formatSeconds(sel.Range.Start) + "-" + formatSeconds(sel.Range.End)
		ext = sel.AudioExt
		if ext == "" {
			ext = DefaultAudioExt
		}
	} else {
		suffix = defaultVideoTag
		ext = defaultVideoExt
		if sel.Format != nil {
			if sel.Format.Label != "" {
				suffix = sel.Format.Label
			}
			if sel.Format.Ext != "" {
				ext = sel.Format.Ext
			}
		}
	}

	return title + "_" + suffix + "." + ext
}

// SanitizeTitle replaces every character outside [A-Za-z0-9_-] with an
// underscore, so "Cat! Video?" becomes "Cat__Video_".
func SanitizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAllowedTitleRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(filenameSanitize)
		}
	}
	return b.String()
}

func isAllowedTitleRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
