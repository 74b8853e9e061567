package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// Local stores files under a base directory.
type Local struct {
	base string
}

// NewLocal creates base if needed.
func NewLocal(base string) (*Local, error) {
	if base == "" {
		return nil, errors.New("storage: local base path is empty")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base: %w", err)
	}
	return &Local{base: base}, nil
}

func (l *Local) resolve(folder, name string) (string, error) {
	key, err := objectKey(folder, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.base, filepath.FromSlash(key)), nil
}

func (l *Local) Exists(_ context.Context, folder, name string) (bool, error) {
	p, err := l.resolve(folder, name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Save writes through a temporary file so readers never see partial content.
func (l *Local) Save(_ context.Context, folder, name string, r io.Reader) error {
	p, err := l.resolve(folder, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create folder: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write: %w", err)
	}
	// CreateTemp uses 0600; stored files are world-readable like any upload.
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

func (l *Local) Get(_ context.Context, folder, name string) ([]byte, error) {
	p, err := l.resolve(folder, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read: %w", err)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, folder, name string) (bool, error) {
	p, err := l.resolve(folder, name)
	if err != nil {
		return false, err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: delete: %w", err)
	}
	return true, nil
}

// List returns the regular files in folder sorted by name. A missing folder
// lists as empty.
func (l *Local) List(_ context.Context, folder string, recursive bool) ([]domain.FileInfo, error) {
	root, err := l.resolve(folder, "")
	if err != nil {
		return nil, err
	}

	files := []domain.FileInfo{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if p != root && !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isTempUpload(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, domain.FileInfo{
			Name:     filepath.ToSlash(rel),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func isTempUpload(name string) bool {
	return strings.HasPrefix(name, ".upload-")
}
