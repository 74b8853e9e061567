package ports

import (
	"context"
	"io"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// FileStorage is the contract shared by the local disk and S3 backends.
// Both implementations must behave identically on it.
type FileStorage interface {
	Exists(ctx context.Context, folder, name string) (bool, error)
	Save(ctx context.Context, folder, name string, r io.Reader) error
	// Get returns domain.ErrFileNotFound when the file is absent.
	Get(ctx context.Context, folder, name string) ([]byte, error)
	// Delete reports false when there was nothing to delete.
	Delete(ctx context.Context, folder, name string) (bool, error)
	// List returns files under folder. Recursive listings name files
	// relative to folder with "/" separators.
	List(ctx context.Context, folder string, recursive bool) ([]domain.FileInfo, error)
}
