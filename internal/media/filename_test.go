package media

import "testing"

func TestSanitizeTitle(t *testing.T) {
	tests := map[string]string{
		"Cat! Video?":    "Cat__Video_",
		"Demo Clip":      "Demo_Clip",
		"already_ok-123": "already_ok-123",
		"héllo":          "h_llo",
		"":               "",
	}
	for in, want := range tests {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildFileName_Video(t *testing.T) {
	md := &VideoMetadata{Title: "Demo Clip", Duration: 100}
	sel := Selection{
		Format: &Format{ID: "v1", Label: "720p", Ext: "mp4"},
		Range:  TrimRange{10, 40},
	}
	if got := BuildFileName(md, sel); got != "Demo_Clip_720p.mp4" {
		t.Fatalf("BuildFileName() = %q, want Demo_Clip_720p.mp4", got)
	}
}

func TestBuildFileName_Audio(t *testing.T) {
	md := &VideoMetadata{Title: "Song", Duration: 200}
	sel := Selection{AudioOnly: true, AudioExt: "m4a", Range: TrimRange{12.5, 40}}
	if got := BuildFileName(md, sel); got != "Song_12.5-40.m4a" {
		t.Fatalf("BuildFileName() = %q, want Song_12.5-40.m4a", got)
	}
}

func TestBuildFileName_Defaults(t *testing.T) {
	if got := BuildFileName(nil, Selection{}); got != "untitled_video.mp4" {
		t.Errorf("BuildFileName(nil) = %q, want untitled_video.mp4", got)
	}
	md := &VideoMetadata{Title: "T"}
	if got := BuildFileName(md, Selection{Format: &Format{ID: "x"}}); got != "T_video.mp4" {
		t.Errorf("missing label/ext: got %q, want T_video.mp4", got)
	}
	if got := BuildFileName(md, Selection{AudioOnly: true}); got != "T_0-0.mp3" {
		t.Errorf("missing audio ext: got %q, want T_0-0.mp3", got)
	}
}

func TestBuildFileName_Deterministic(t *testing.T) {
	md := &VideoMetadata{Title: "Cat! Video?"}
	sel := Selection{Format: &Format{Label: "1080p", Ext: "webm"}}
	first := BuildFileName(md, sel)
	for i := 0; i < 5; i++ {
		if got := BuildFileName(md, sel); got != first {
			t.Fatalf("BuildFileName() not deterministic: %q vs %q", got, first)
		}
	}
	if first != "Cat__Video__1080p.webm" {
		t.Fatalf("BuildFileName() = %q", first)
	}
}
