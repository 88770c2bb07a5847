// Пакет scratch — короткоживущая область для файлов, выносимых с полки
// наружу (drag-out, экспорт). Не участвует в учёте полки: квота и окно
// хранения на эту область не распространяются. Очищается по возрасту,
// best effort — ошибки удаления игнорируются.
package scratch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Area — отдельная директория для экспортируемых копий.
type Area struct {
	dir    string
	logger *slog.Logger
}

// New создаёт область экспорта. Проверяет и создаёт директорию
// если она не существует.
func New(dir string, logger *slog.Logger) (*Area, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать scratch-директорию %s: %w", dir, err)
	}

	return &Area{
		dir:    dir,
		logger: logger.With(slog.String("component", "scratch")),
	}, nil
}

// Place копирует файл в область экспорта под отображаемым именем.
// При коллизии имён существующая копия перезаписывается.
// Возвращает абсолютный путь копии.
func (a *Area) Place(sourcePath, displayName string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", sourcePath, err)
	}
	defer src.Close()

	targetPath := filepath.Join(a.dir, filepath.Base(displayName))
	tmpPath := targetPath + ".tmp"

	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка копирования: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return targetPath, nil
}

// Sweep удаляет из области экспорта файлы старше maxAge (по mtime).
// Best effort: ошибки отдельных файлов логируются и пропускаются.
// Возвращает количество удалённых файлов.
func (a *Area) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		a.logger.Warn("Ошибка чтения scratch-директории",
			slog.String("error", err.Error()),
		)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(a.dir, entry.Name())); err != nil {
			a.logger.Debug("Не удалось удалить устаревшую экспортную копию",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	return removed
}

// Dir возвращает путь к директории экспорта.
func (a *Area) Dir() string {
	return a.dir
}
