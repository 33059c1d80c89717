package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/vidslicer/vidslicer/internal/logging"
)

// FileSaver stores a downloaded payload under the given file name and returns
// the path it was written to.
type FileSaver interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// FSSaver writes downloads into a single directory. Existing files are never
// overwritten; a numeric suffix is added instead.
type FSSaver struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

func NewFSSaver(fs afero.Fs, dir string, logger *slog.Logger) *FSSaver {
	return &FSSaver{fs: fs, dir: dir, logger: logger}
}

func (s *FSSaver) Dir() string {
	return s.dir
}

func (s *FSSaver) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := validateDir(s.dir); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".vidslicer-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("write download: %w", err)
	}

	dest, err := s.freePath(name)
	if err != nil {
		s.fs.Remove(tmpName)
		return "", err
	}
	if err := s.fs.Rename(tmpName, dest); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("finalize download: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("download saved", "path", logging.SanitizePath(dest), "size", humanize.Bytes(uint64(n)))
	}
	return dest, nil
}

// freePath returns dir/name, or dir/base (n).ext for the first n not taken.
func (s *FSSaver) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(s.dir, name)
	for i := 1; i < 1000; i++ {
		exists, err := afero.Exists(s.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(s.dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
	}
	return "", fmt.Errorf("no free file name for %s", name)
}

func validateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("download dir is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("download dir cannot contain path traversal")
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("file name %q must not contain a path", name)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// DefaultSaver writes into dir on the OS filesystem.
func DefaultSaver(dir string, logger *slog.Logger) *FSSaver {
	return NewFSSaver(afero.NewOsFs(), dir, logger)
}

var _ FileSaver = (*FSSaver)(nil)

// discardSaver drops payloads; used when no download directory is configured.
type discardSaver struct{}

func (discardSaver) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return os.DevNull, nil
}
