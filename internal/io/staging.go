package io

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bizphotos/internal/utils"
)

// StagingArtifact is an upload copied to disk before it is committed to the
// blob store.
type StagingArtifact struct {
	Path        string
	Filename    string
	ContentType string
	BusinessID  string
}

type StagingArea struct {
	Dir string
}

func MakeStagingArea(dir string) (StagingArea, error) {
	err := utils.MakeSureDirExists(dir)
	if err != nil {
		return StagingArea{}, fmt.Errorf("utils.MakeSureDirExists(dir). %w", err)
	}
	return StagingArea{Dir: dir}, nil
}

// Stage copies r to a new file named <32 random hex chars>.<extension>. On
// error nothing is left behind.
func (s StagingArea) Stage(r io.Reader, extension string) (StagingArtifact, error) {
	name, err := utils.RandomHex(16)
	if err != nil {
		return StagingArtifact{}, fmt.Errorf("utils.RandomHex(16). %w", err)
	}
	filename := name + "." + extension
	path := filepath.Join(s.Dir, filename)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return StagingArtifact{}, fmt.Errorf("os.OpenFile(path). %w", err)
	}

	_, err = io.Copy(file, r)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return StagingArtifact{}, fmt.Errorf("io.Copy(file, r). %w", err)
	}

	return StagingArtifact{Path: path, Filename: filename}, nil
}

// Remove deletes the artifact. An artifact that is already gone counts as
// removed.
func (s StagingArea) Remove(artifact StagingArtifact) error {
	err := os.Remove(artifact.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("os.Remove(artifact.Path). %w", err)
	}
	return nil
}

// SweepOlderThan removes staged files last modified before now-maxAge and
// reports how many were removed.
func (s StagingArea) SweepOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, fmt.Errorf("os.ReadDir(s.Dir). %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		err = os.Remove(filepath.Join(s.Dir, entry.Name()))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}
