package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestFSSaver_Save(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFSSaver(fs, "/out", nil)

	path, err := s.Save(context.Background(), "Demo_Clip_720p.mp4", strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if path != "/out/Demo_Clip_720p.mp4" {
		t.Errorf("path = %q", path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil || string(data) != "abc" {
		t.Errorf("content = %q, %v", data, err)
	}

	entries, _ := afero.ReadDir(fs, "/out")
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, temp file left behind?", len(entries))
	}
}

func TestFSSaver_DoesNotOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFSSaver(fs, "/out", nil)
	ctx := context.Background()

	first, _ := s.Save(ctx, "clip.mp3", strings.NewReader("one"))
	second, err := s.Save(ctx, "clip.mp3", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if first == second {
		t.Fatalf("second save reused %q", first)
	}
	if second != "/out/clip (1).mp3" {
		t.Errorf("second path = %q", second)
	}

	data, _ := afero.ReadFile(fs, first)
	if string(data) != "one" {
		t.Errorf("first file overwritten: %q", data)
	}
}

func TestFSSaver_RejectsBadNames(t *testing.T) {
	s := NewFSSaver(afero.NewMemMapFs(), "/out", nil)

	for _, name := range []string{"", "..", "../escape.mp4", "a/b.mp4", `a\b.mp4`} {
		if _, err := s.Save(context.Background(), name, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) expected error", name)
		}
	}
}

func TestFSSaver_RejectsBadDir(t *testing.T) {
	for _, dir := range []string{"", "/tmp/../etc"} {
		s := NewFSSaver(afero.NewMemMapFs(), dir, nil)
		if _, err := s.Save(context.Background(), "a.mp4", strings.NewReader("x")); err == nil {
			t.Errorf("dir %q expected error", dir)
		}
	}
}

func TestFSSaver_CancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFSSaver(fs, "/out", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "a.mp4", strings.NewReader("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Save() error = %v, want context.Canceled", err)
	}

	entries, _ := afero.ReadDir(fs, "/out")
	if len(entries) != 0 {
		t.Errorf("dir has %d entries after cancel", len(entries))
	}
}
