package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/tracing"
)

// FilesystemStorage keeps objects as files below a root directory. Keys are slash
// separated paths relative to the root.
type FilesystemStorage struct {
	root string
}

func NewFilesystemStorage(root string) interfaces.StorageService {
	return &FilesystemStorage{root: root}
}

func (s *FilesystemStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FilesystemStorage.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	path, err := s.resolve(key)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "create directory for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "create temp file for %s", key)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "close %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "rename %s", key)
	}
	return nil
}

func (s *FilesystemStorage) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FilesystemStorage.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	path, err := s.resolve(key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return data, nil
}

func (s *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes key. Deleting a missing key succeeds.
func (s *FilesystemStorage) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FilesystemStorage.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("storage.key", key)

	path, err := s.resolve(key)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

func (s *FilesystemStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return filepath.Join(s.root, clean), nil
}
