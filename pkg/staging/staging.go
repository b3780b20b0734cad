// Package staging owns the scratch directory that buffers inbound uploads
// on disk before they are forwarded to the storage cluster.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSizeLimit is returned by Fill when the source yields more bytes than allowed.
var ErrSizeLimit = errors.New("staged payload exceeds size limit")

const filePerm = 0600

// Area is a process-wide staging directory. It needs no locking: every
// File gets a name no other File can have.
type Area struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) (*Area, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging directory: %w", err)
	}
	return &Area{dir: abs, logger: logger}, nil
}

func (a *Area) Dir() string { return a.dir }

// Create opens a new, empty staging file for originalName. The name is
// creation time, a random suffix and the sanitized original name; O_EXCL
// guarantees it was not already taken.
func (a *Area) Create(originalName string) (*File, error) {
	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], sanitize(originalName))
	path := filepath.Join(a.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	a.logger.Debug("Staging file created", zap.String("path", path))
	return &File{path: path, w: f, logger: a.logger}, nil
}

// Sweep removes staging files older than maxAge. They can only be left
// behind by a process that died mid-upload.
func (a *Area) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("Failed to sweep staging file", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// File is one staged upload. Release must be called exactly once the
// owner is done with it; it is safe to call more than once.
type File struct {
	path   string
	w      *os.File
	size   int64
	logger *zap.Logger

	releaseOnce sync.Once
	releaseErr  error
}

func (f *File) Path() string { return f.path }

// Size is the number of bytes written so far.
func (f *File) Size() int64 { return f.size }

// Fill copies src into the file until EOF. It stops with ErrSizeLimit as
// soon as more than limit bytes arrive, and with ctx's error if ctx ends.
func (f *File) Fill(ctx context.Context, src io.Reader, limit int64) (int64, error) {
	if f.w == nil {
		return 0, fmt.Errorf("staging file %s is sealed", f.path)
	}

	reader := io.LimitReader(&ctxReader{ctx: ctx, r: src}, limit+1)
	n, err := io.Copy(f.w, reader)
	f.size += n
	if err != nil {
		return n, err
	}
	if f.size > limit {
		return n, ErrSizeLimit
	}
	return n, nil
}

// Seal flushes and closes the write handle. The file stays on disk until Release.
func (f *File) Seal() error {
	if f.w == nil {
		return nil
	}
	w := f.w
	f.w = nil
	if err := w.Sync(); err != nil {
		w.Close()
		return fmt.Errorf("failed to sync staging file: %w", err)
	}
	return w.Close()
}

// Open returns a fresh read handle over the staged bytes.
func (f *File) Open() (*os.File, error) {
	return os.Open(f.path)
}

// Release closes any open handle and removes the file. Only the first call
// does any work; later calls return the first result.
func (f *File) Release() error {
	f.releaseOnce.Do(func() {
		if f.w != nil {
			f.w.Close()
			f.w = nil
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			f.releaseErr = fmt.Errorf("failed to remove staging file: %w", err)
			f.logger.Error("Staging file left behind", zap.String("path", f.path), zap.Error(err))
			return
		}
		f.logger.Debug("Staging file removed", zap.String("path", f.path))
	})
	return f.releaseErr
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

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.bin"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload.bin"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
