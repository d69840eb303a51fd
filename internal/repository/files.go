package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	errs "kifu_viewer/internal/errors"
)

// FileStorage читает и пишет файлы записей целиком. Хранилище из NewFileStorage
// ограничено каталогом baseDir: абсолютные пути и выход через ".." отклоняются.
type FileStorage struct {
	baseDir  string
	confined bool
	log      *zap.SugaredLogger
}

// NewFileStorage отдаёт хранилище для путей, пришедших извне (HTTP).
func NewFileStorage(baseDir string, log *zap.SugaredLogger) *FileStorage {
	if baseDir == "" {
		baseDir = "."
	}
	return &FileStorage{baseDir: baseDir, confined: true, log: log}
}

// NewLocalFileStorage принимает любые пути как есть. Только для путей, которые
// указал владелец процесса: аргументы командной строки и файл запуска.
func NewLocalFileStorage(log *zap.SugaredLogger) *FileStorage {
	return &FileStorage{log: log}
}

func (f *FileStorage) resolve(path string) (string, error) {
	if !f.confined {
		return path, nil
	}
	if path == "" || filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q", errs.ErrPathNotAllowed, path)
	}

	base, err := filepath.Abs(f.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	full := filepath.Join(base, path)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errs.ErrPathNotAllowed, path)
	}
	return full, nil
}

func (f *FileStorage) ReadText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := f.resolve(path)
	if err != nil {
		f.log.Warnw("rejected record path", "path", path, "error", err)
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	f.log.Debugw("read record file", "path", full, "bytes", len(data))
	return string(data), nil
}

func (f *FileStorage) WriteText(ctx context.Context, path string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := f.resolve(path)
	if err != nil {
		f.log.Warnw("rejected record path", "path", path, "error", err)
		return err
	}
	if err = os.WriteFile(full, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	f.log.Debugw("wrote record file", "path", full, "bytes", len(text))
	return nil
}
