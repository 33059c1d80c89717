package media

// IsFullVideo reports whether r covers the whole source.
func IsFullVideo(r TrimRange, md *VideoMetadata) bool {
	if md == nil {
		return false
	}
	return r.Start == 0 && r.End == md.Duration
}

// DefaultVideoFormat picks the last listed video format. The backend sorts
// video formats ascending by height, so the last entry is the highest quality.
func DefaultVideoFormat(formats []Format) *Format {
	if len(formats) == 0 {
		return nil
	}
	f := formats[len(formats)-1]
	return &f
}

// ResolveAudioFormatID finds the format to request in audio-only mode: the
// audio stream matching audioExt, else the first audio stream, else fallback.
// An empty result means nothing can be downloaded.
func ResolveAudioFormatID(md *VideoMetadata, audioExt string, fallback FormatID) FormatID {
	if md == nil {
		return fallback
	}
	for _, f := range md.Formats.Audio {
		if f.Ext == audioExt && f.ID != "" {
			return f.ID
		}
	}
	if len(md.Formats.Audio) > 0 && md.Formats.Audio[0].ID != "" {
		return md.Formats.Audio[0].ID
	}
	return fallback
}

// FormatByID returns a copy of the format with the given id, or nil.
func FormatByID(formats []Format, id FormatID) *Format {
	for _, f := range formats {
		if f.ID == id {
			return &f
		}
	}
	return nil
}
