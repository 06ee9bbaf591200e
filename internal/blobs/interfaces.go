// Package blobs writes generated source to local files or object storage.
package blobs

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Sink is a destination for one generated artifact.
type Sink interface {
	// Write copies src to the destination and returns the bytes written.
	Write(ctx context.Context, src io.Reader) (int64, error)
	// String returns the destination as the user wrote it.
	String() string
}

const gcsScheme = "gs://"

// OpenSink selects a sink for target: gs://bucket/object for GCS, anything
// else is a local path.
func OpenSink(ctx context.Context, target string) (Sink, error) {
	if target == "" {
		return nil, fmt.Errorf("empty output target")
	}
	if strings.HasPrefix(target, gcsScheme) {
		bucket, object, err := ParseGCSURL(target)
		if err != nil {
			return nil, err
		}
		return &GCSSink{Bucket: bucket, Object: object}, nil
	}
	return &FileSink{Path: target}, nil
}

// ParseGCSURL splits gs://bucket/object into its parts.
func ParseGCSURL(u string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(u, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("%q is not a gs:// URL", u)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket", u)
	}
	if object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%q has no object name", u)
	}
	return bucket, object, nil
}
