package ports

import (
	"context"
	"io"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// UploadInput is the validated upload form.
type UploadInput struct {
	FileType string
	FileName string
	Update   bool
	// Filename is the client-side name of the attached part; empty when
	// nothing was selected.
	Filename string
	Content  io.Reader
}

// UploadResult echoes what was stored.
type UploadResult struct {
	FileName string
	FileType string
}

// UploadService stores and serves user uploads through FileStorage.
type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	List(ctx context.Context, fileType string, recursive bool) ([]domain.FileInfo, error)
	Download(ctx context.Context, fileType, fileName string) ([]byte, error)
	Delete(ctx context.Context, fileType, fileName string) error
}
