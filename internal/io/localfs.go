package io

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bizphotos/internal/utils"
)

var ErrBadFilename = errors.New("filename must be a plain file name")

type LocalFSHandler struct {
	DataPath string
}

func MakeFileSystemHandler(dataPath string) (LocalFSHandler, error) {
	var handler LocalFSHandler

	err := utils.MakeSureDirExists(dataPath)
	if err != nil {
		return handler, fmt.Errorf(`utils.MakeSureDirExists(dataPath). %w`, err)
	}

	handler.DataPath = dataPath

	return handler, nil
}

func (l LocalFSHandler) path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", ErrBadFilename
	}
	return filepath.Join(l.DataPath, filename), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (l LocalFSHandler) WriteBlob(ctx context.Context, filename string, r io.Reader) (int64, error) {
	final, err := l.path(filename)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(l.DataPath, ".partial-*")
	if err != nil {
		return 0, fmt.Errorf(`os.CreateTemp(l.DataPath, ".partial-*"). %w`, err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	written, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return 0, fmt.Errorf(`io.Copy(tmp, r). %w`, err)
	}
	if err = tmp.Sync(); err != nil {
		return 0, fmt.Errorf(`tmp.Sync(). %w`, err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf(`tmp.Close(). %w`, err)
	}

	if _, err = os.Stat(final); err == nil {
		return 0, fmt.Errorf("blob file %s already exists", filename)
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return 0, fmt.Errorf(`os.Rename(tmp.Name(), final). %w`, err)
	}
	committed = true

	return written, nil
}

func (l LocalFSHandler) OpenBlob(filename string) (io.ReadCloser, error) {
	path, err := l.path(filename)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf(`os.Open(path). %w`, err)
	}
	return file, nil
}

func (l LocalFSHandler) RemoveBlob(filename string) error {
	path, err := l.path(filename)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil {
		return fmt.Errorf(`os.Remove(path) %w`, err)
	}
	return nil
}

func (l LocalFSHandler) GetStoragePath() string {
	return l.DataPath
}
