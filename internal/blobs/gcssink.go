package blobs

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"k8s.io/klog/v2"
)

// GCSSink uploads to a Google Cloud Storage object, overwriting it.
// Credentials come from the environment (Application Default Credentials).
type GCSSink struct {
	Bucket string
	Object string
}

var _ Sink = (*GCSSink)(nil)

func (s *GCSSink) String() string {
	return gcsScheme + s.Bucket + "/" + s.Object
}

func (s *GCSSink) Write(ctx context.Context, src io.Reader) (int64, error) {
	log := klog.FromContext(ctx)
	gcsURL := s.String()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return 0, fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("uploading output to GCS", "destination", gcsURL)

	startedAt := time.Now()
	obj := client.Bucket(s.Bucket).Object(s.Object)
	n, err := upload(ctx, func(ctx context.Context) objectWriter {
		w := obj.NewWriter(ctx)
		w.ContentType = "text/plain; charset=utf-8"
		return w
	}, src)
	if err != nil {
		return n, fmt.Errorf("uploading to %s: %w", gcsURL, err)
	}

	log.Info("uploaded output to GCS", "url", gcsURL, "bytes", n, "duration", time.Since(startedAt))
	return n, nil
}

// objectWriter is the part of *storage.Writer an upload needs.
type objectWriter interface {
	io.Writer
	Close() error
}

// upload copies src into a writer bound to a cancellable context. Closing a
// storage.Writer commits the object, so a failed copy cancels the context
// instead and nothing is written.
func upload(ctx context.Context, newWriter func(context.Context) objectWriter, src io.Reader) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := newWriter(ctx)
	n, err := io.Copy(w, src)
	if err != nil {
		cancel()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("committing object: %w", err)
	}
	return n, nil
}
