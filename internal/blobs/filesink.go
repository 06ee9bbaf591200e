package blobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"
)

// FileSink writes to a local path. The file is replaced atomically, so a
// reader never sees partial output.
type FileSink struct {
	Path string
}

var _ Sink = (*FileSink)(nil)

func (s *FileSink) String() string {
	return s.Path
}

func (s *FileSink) Write(ctx context.Context, src io.Reader) (int64, error) {
	log := klog.FromContext(ctx)

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tensorgen-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("writing temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Chmod(tempFile.Name(), 0o644); err != nil {
		return n, fmt.Errorf("setting permissions on temp file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), s.Path); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	log.V(1).Info("wrote output", "path", s.Path, "bytes", n)
	return n, nil
}
