// Package storage holds the FileStorage backends: a local directory for
// development and an S3 bucket elsewhere. Both resolve files as folder/name.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

// ErrInvalidPath is returned for folders or names that would escape the
// storage root.
var ErrInvalidPath = errors.New("storage: invalid path")

// Source names accepted by Open.
const (
	SourceLocal = "local"
	SourceS3    = "s3"
)

// Open returns the backend selected by source, timed per operation.
func Open(ctx context.Context, source, localBase string, s3cfg S3Config) (ports.FileStorage, error) {
	var (
		backend ports.FileStorage
		err     error
	)
	switch source {
	case SourceLocal:
		backend, err = NewLocal(localBase)
	case SourceS3:
		backend, err = NewS3(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("storage: unknown source %q", source)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(backend, source), nil
}

// Instrument records the duration of every call on fs under the given
// backend label.
func Instrument(fs ports.FileStorage, backend string) ports.FileStorage {
	return &instrumented{next: fs, backend: backend}
}

type instrumented struct {
	next    ports.FileStorage
	backend string
}

func (i *instrumented) observe(op string, start time.Time) {
	metrics.StorageOperationDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Exists(ctx context.Context, folder, name string) (bool, error) {
	defer i.observe("exists", time.Now())
	return i.next.Exists(ctx, folder, name)
}

func (i *instrumented) Save(ctx context.Context, folder, name string, r io.Reader) error {
	defer i.observe("save", time.Now())
	return i.next.Save(ctx, folder, name, r)
}

func (i *instrumented) Get(ctx context.Context, folder, name string) ([]byte, error) {
	defer i.observe("get", time.Now())
	return i.next.Get(ctx, folder, name)
}

func (i *instrumented) Delete(ctx context.Context, folder, name string) (bool, error) {
	defer i.observe("delete", time.Now())
	return i.next.Delete(ctx, folder, name)
}

func (i *instrumented) List(ctx context.Context, folder string, recursive bool) ([]domain.FileInfo, error) {
	defer i.observe("list", time.Now())
	return i.next.List(ctx, folder, recursive)
}

// objectKey joins folder and name with "/" after rejecting traversal.
// An empty name yields the folder key itself.
func objectKey(folder, name string) (string, error) {
	for _, part := range []string{folder, name} {
		if strings.Contains(part, "\\") {
			return "", ErrInvalidPath
		}
		for _, seg := range strings.Split(part, "/") {
			if seg == ".." {
				return "", ErrInvalidPath
			}
		}
	}
	key := path.Clean(path.Join(folder, name))
	if key == "." || strings.HasPrefix(key, "/") {
		return "", ErrInvalidPath
	}
	return key, nil
}
