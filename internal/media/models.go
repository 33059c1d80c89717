// Package media holds the value types exchanged with the extraction backend and
// the pure derivations the session controller computes from them: default
// format selection, audio format resolution, full-video detection, trim range
// validation and download file naming.
package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatID identifies a format within its list. The backend usually sends
// yt-dlp format ids as strings but numeric ids are accepted as well.
type FormatID string

func (id *FormatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FormatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("format id: %w", err)
	}
	*id = FormatID(n.String())
	return nil
}

func (id FormatID) String() string {
	return string(id)
}

type Format struct {
	ID        FormatID `json:"id"`
	Label     string   `json:"label,omitempty"`
	Ext       string   `json:"ext"`
	Bitrate   *float64 `json:"bitrate,omitempty"`
	FPS       *float64 `json:"fps,omitempty"`
	Filesize  *float64 `json:"filesize,omitempty"`
	Container string   `json:"container,omitempty"`
}

// BitrateLabel renders the audio bitrate the way the format picker shows it.
func (f Format) BitrateLabel() string {
	if f.Bitrate == nil || *f.Bitrate <= 0 {
		return "source"
	}
	return strconv.FormatFloat(*f.Bitrate, 'f', -1, 64) + "kbps"
}

type Formats struct {
	Video []Format `json:"video"`
	Audio []Format `json:"audio"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// VideoMetadata is the inspection result for a single URL. It is replaced
// wholesale on every successful inspection and never mutated.
type VideoMetadata struct {
	ID            string      `json:"id,omitempty"`
	Title         string      `json:"title"`
	Uploader      string      `json:"uploader,omitempty"`
	Platform      string      `json:"platform,omitempty"`
	Duration      float64     `json:"duration"`
	BestThumbnail string      `json:"bestThumbnail,omitempty"`
	Thumbnails    []Thumbnail `json:"thumbnails,omitempty"`
	Formats       Formats     `json:"formats"`
}

// Clip is a history entry created by a successful save.
type Clip struct {
	ID           int64   `json:"id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Platform     string  `json:"platform,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	FormatLabel  string  `json:"formatLabel"`
	StartTime    float64 `json:"startTime"`
	EndTime      float64 `json:"endTime"`
	Duration     float64 `json:"duration"`
	FileName     string  `json:"fileName,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
}

// ClipPayload is the body of a clip creation request.
type ClipPayload struct {
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Platform     string  `json:"platform,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	FormatLabel  string  `json:"formatLabel"`
	StartTime    float64 `json:"startTime"`
	EndTime      float64 `json:"endTime"`
	Duration     float64 `json:"duration"`
	FileName     string  `json:"fileName"`
}

// DownloadRequest is the body sent to the backend download endpoint.
type DownloadRequest struct {
	URL         string   `json:"url"`
	FormatID    FormatID `json:"formatId"`
	StartTime   float64  `json:"startTime"`
	EndTime     float64  `json:"endTime"`
	AudioOnly   bool     `json:"audioOnly"`
	AudioFormat string   `json:"audioFormat"`
	FileName    string   `json:"fileName"`
}

const (
	// DefaultAudioExt is the audio container requested until the user picks one.
	DefaultAudioExt = "mp3"

	// MaxHistory bounds the in-memory clip history.
	MaxHistory = 50
)

// PrependClip returns a new history list with c first, truncated to MaxHistory.
func PrependClip(history []Clip, c Clip) []Clip {
	out := make([]Clip, 0, min(len(history)+1, MaxHistory))
	out = append(out, c)
	for _, h := range history {
		if len(out) == MaxHistory {
			break
		}
		out = append(out, h)
	}
	return out
}

// CapHistory copies at most MaxHistory entries of history.
func CapHistory(history []Clip) []Clip {
	n := min(len(history), MaxHistory)
	out := make([]Clip, n)
	copy(out, history[:n])
	return out
}
