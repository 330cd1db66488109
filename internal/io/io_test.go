package io

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStageAndRemove(t *testing.T) {
	staging, err := MakeStagingArea(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	artifact, err := staging.Stage(strings.NewReader("image bytes"), "jpg")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}\.jpg$`), artifact.Filename)
	assert.Equal(t, filepath.Join(staging.Dir, artifact.Filename), artifact.Path)

	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	require.NoError(t, staging.Remove(artifact))
	assert.NoFileExists(t, artifact.Path)

	// removing twice is fine
	assert.NoError(t, staging.Remove(artifact))
}

func TestStageFailureLeavesNothing(t *testing.T) {
	staging, err := MakeStagingArea(t.TempDir())
	require.NoError(t, err)

	_, err = staging.Stage(brokenReader{}, "png")
	assert.Error(t, err)

	entries, err := os.ReadDir(staging.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweepOlderThan(t *testing.T) {
	staging, err := MakeStagingArea(t.TempDir())
	require.NoError(t, err)

	old, err := staging.Stage(strings.NewReader("old"), "jpg")
	require.NoError(t, err)
	fresh, err := staging.Stage(strings.NewReader("fresh"), "jpg")
	require.NoError(t, err)
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	removed, err := staging.SweepOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old.Path)
	assert.FileExists(t, fresh.Path)
}

func TestLocalFSWriteOpenRemove(t *testing.T) {
	handler, err := MakeFileSystemHandler(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	n, err := handler.WriteBlob(context.Background(), "a.png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	f, err := handler.OpenBlob("a.png")
	require.NoError(t, err)
	buf := bytes.Buffer{}
	_, err = buf.ReadFrom(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "png", buf.String())

	_, err = handler.WriteBlob(context.Background(), "a.png", bytes.NewReader([]byte("again")))
	assert.Error(t, err, "existing blobs are never overwritten")

	require.NoError(t, handler.RemoveBlob("a.png"))
	_, err = handler.OpenBlob("a.png")
	assert.Error(t, err)
}

func TestLocalFSRejectsPathsOutsideDataDir(t *testing.T) {
	handler, err := MakeFileSystemHandler(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.png", "sub/dir.png", ".partial-1"} {
		_, err := handler.WriteBlob(context.Background(), name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrBadFilename, name)
		_, err = handler.OpenBlob(name)
		assert.ErrorIs(t, err, ErrBadFilename, name)
	}
}

func TestLocalFSWriteFailureLeavesNoPartialFile(t *testing.T) {
	handler, err := MakeFileSystemHandler(t.TempDir())
	require.NoError(t, err)

	_, err = handler.WriteBlob(context.Background(), "b.jpg", brokenReader{})
	assert.Error(t, err)

	entries, err := os.ReadDir(handler.GetStoragePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
