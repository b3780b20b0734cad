package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"civicrelay/pkg/config"
	"civicrelay/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupLoggerTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	lc := config.Default().Log
	lc.File = path

	logger := setupLogger(false, lc)
	logger.Info("hello from the relay")
	logger.Debug("not at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the relay")
	assert.Contains(t, string(data), `"timestamp"`)
	assert.NotContains(t, string(data), "not at info level")
}

func TestSizeFlag(t *testing.T) {
	var raw string
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&raw, "chunk-size", "2MiB", "")

	dst := utils.ByteSize(7)
	require.NoError(t, sizeFlag(cmd, "chunk-size", raw, &dst))
	assert.Equal(t, utils.ByteSize(7), dst, "unchanged flag leaves the value alone")

	require.NoError(t, cmd.Flags().Set("chunk-size", "4MiB"))
	require.NoError(t, sizeFlag(cmd, "chunk-size", raw, &dst))
	assert.Equal(t, utils.ByteSize(4*utils.MiB), dst)

	require.NoError(t, cmd.Flags().Set("chunk-size", "lots"))
	assert.Error(t, sizeFlag(cmd, "chunk-size", raw, &dst))
}

func TestOpenStagingKeepsRecentFiles(t *testing.T) {
	dir := t.TempDir()
	leftover := filepath.Join(dir, "1-dead-crashed.bin")
	inFlight := filepath.Join(dir, "2-live-peer.bin")
	require.NoError(t, os.WriteFile(leftover, []byte("old"), 0600))
	require.NoError(t, os.WriteFile(inFlight, []byte("new"), 0600))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(leftover, old, old))

	cfg := config.Default().Upload
	cfg.StagingDir = dir

	area, err := openStaging(&cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, dir, area.Dir())

	_, err = os.Stat(leftover)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(inFlight)
	assert.NoError(t, err, "a file younger than stale_after may belong to another relay")
}
