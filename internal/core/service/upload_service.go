package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

type uploadService struct {
	storage ports.FileStorage
	log     zerolog.Logger
}

// NewUploadService returns an UploadService over storage.
func NewUploadService(storage ports.FileStorage, log zerolog.Logger) ports.UploadService {
	return &uploadService{storage: storage, log: log}
}

// Upload stores a new file. Overwriting an existing file is not supported yet.
func (s *uploadService) Upload(ctx context.Context, in ports.UploadInput) (*ports.UploadResult, error) {
	if !domain.IsAllowedFileType(in.FileType) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("Invalid input: {'file_type': ['Invalid value.']}")
	}
	name := SecureFilename(in.FileName)
	if name == "" {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("Invalid input: {'file_name': ['Invalid file name.']}")
	}
	if in.Update {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("Updates not currently enabled!")
	}
	if in.Content == nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("No file part in the request")
	}
	if in.Filename == "" {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("No file selected for uploading")
	}

	folder := domain.UploadFolder(in.FileType)
	exists, err := s.storage.Exists(ctx, folder, name)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upload: %w", err)
	}
	if exists && !in.Update {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("File already exists and update flag is false")
	}
	if !exists && in.Update {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.NewClientError("File does not exist and update flag is true")
	}

	if err := s.storage.Save(ctx, folder, name, in.Content); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upload: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	s.log.Info().Str("file_type", in.FileType).Str("file_name", name).Msg("file uploaded")
	return &ports.UploadResult{FileName: name, FileType: in.FileType}, nil
}

// List returns the files stored for fileType.
func (s *uploadService) List(ctx context.Context, fileType string, recursive bool) ([]domain.FileInfo, error) {
	if !domain.IsAllowedFileType(fileType) {
		return nil, domain.NewClientError("Unknown file type: %s", fileType)
	}
	files, err := s.storage.List(ctx, domain.UploadFolder(fileType), recursive)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return files, nil
}

// Download returns a stored file's content.
func (s *uploadService) Download(ctx context.Context, fileType, fileName string) ([]byte, error) {
	name := SecureFilename(fileName)
	if !domain.IsAllowedFileType(fileType) || name == "" {
		return nil, domain.ErrFileNotFound
	}
	data, err := s.storage.Get(ctx, domain.UploadFolder(fileType), name)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("download: %w", err)
	}
	return data, nil
}

// Delete removes a stored file.
func (s *uploadService) Delete(ctx context.Context, fileType, fileName string) error {
	name := SecureFilename(fileName)
	if !domain.IsAllowedFileType(fileType) || name == "" {
		return domain.ErrFileNotFound
	}
	ok, err := s.storage.Delete(ctx, domain.UploadFolder(fileType), name)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if !ok {
		return domain.ErrFileNotFound
	}
	s.log.Info().Str("file_type", fileType).Str("file_name", name).Msg("file deleted")
	return nil
}

// SecureFilename reduces name to a safe base name: path components are
// dropped, whitespace becomes "_", characters outside [A-Za-z0-9._-] are
// removed and dots or underscores are trimmed from both ends.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
