package staging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newArea(t *testing.T) *Area {
	area, err := New(filepath.Join(t.TempDir(), "uploads_temp"), zap.NewNop())
	require.NoError(t, err)
	return area
}

func TestFillSealRelease(t *testing.T) {
	area := newArea(t)
	payload := bytes.Repeat([]byte("civic"), 1000)

	f, err := area.Create("budget report.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.Path(), "budget_report.pdf"))

	n, err := f.Fill(context.Background(), bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	require.NoError(t, f.Seal())

	r, err := f.Open()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, payload, got)

	require.NoError(t, f.Release())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	// Second release is a no-op.
	assert.NoError(t, f.Release())
}

func TestFillEnforcesLimit(t *testing.T) {
	area := newArea(t)
	f, err := area.Create("big.bin")
	require.NoError(t, err)
	defer f.Release()

	_, err = f.Fill(context.Background(), bytes.NewReader(make([]byte, 101)), 100)
	assert.ErrorIs(t, err, ErrSizeLimit)
}

func TestFillStopsOnCancel(t *testing.T) {
	area := newArea(t)
	f, err := area.Create("slow.bin")
	require.NoError(t, err)
	defer f.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Fill(ctx, bytes.NewReader([]byte("data")), 100)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReleaseBeforeSeal(t *testing.T) {
	area := newArea(t)
	f, err := area.Create("partial.bin")
	require.NoError(t, err)

	_, err = f.Fill(context.Background(), strings.NewReader("half"), 100)
	require.NoError(t, err)

	require.NoError(t, f.Release())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentCreatesNeverCollide(t *testing.T) {
	area := newArea(t)

	const sessions = 50
	paths := make(chan string, sessions)
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := area.Create("same-name.pdf")
			if !assert.NoError(t, err) {
				return
			}
			paths <- f.Path()
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		assert.False(t, seen[p], "duplicate staging path %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, sessions)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "passwd", sanitize("../../etc/passwd"))
	assert.Equal(t, "evil.exe", sanitize(`C:\temp\evil.exe`))
	assert.Equal(t, "upload.bin", sanitize(""))
	assert.Equal(t, "hidden", sanitize(".hidden"))
	assert.Equal(t, "r_sum_.pdf", sanitize("résumé.pdf"))
}

func TestSweep(t *testing.T) {
	area := newArea(t)

	stale, err := area.Create("stale.bin")
	require.NoError(t, err)
	require.NoError(t, stale.Seal())
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Path(), old, old))

	fresh, err := area.Create("fresh.bin")
	require.NoError(t, err)
	defer fresh.Release()

	removed, err := area.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale.Path())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh.Path())
	assert.NoError(t, err)
}
