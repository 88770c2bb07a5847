package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropshelf/dropshelf/internal/convert"
	"github.com/dropshelf/dropshelf/internal/shelf"
	"github.com/dropshelf/dropshelf/internal/storage/filestore"
	"github.com/dropshelf/dropshelf/internal/storage/scratch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// noopBackend — заглушка движка конвертации для тестов сверки.
type noopBackend struct{}

func (noopBackend) Convert(_ context.Context, _ convert.Request) (*convert.Result, error) {
	return nil, errors.New("конвертация недоступна")
}

func setupSweeper(t *testing.T) (*Sweeper, *shelf.Shelf, *filestore.FileStore, string) {
	t.Helper()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	sh := shelf.New(store, noopBackend{}, shelf.Config{
		MaxShelfBytes: 10000,
	}, testLogger())

	scratchDir := t.TempDir()
	area, err := scratch.New(scratchDir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания области экспорта: %v", err)
	}

	sw := NewSweeper(sh, area, time.Minute, time.Hour, testLogger())
	return sw, sh, store, scratchDir
}

// TestRunOnce_RemovesMissing: запись с пропавшими байтами удаляется
// при ближайшем цикле сверки.
func TestRunOnce_RemovesMissing(t *testing.T) {
	sw, sh, store, _ := setupSweeper(t)

	src := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(src, []byte("содержимое"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	rec, err := sh.Add(context.Background(), src, "doc.txt")
	if err != nil {
		t.Fatalf("ошибка приёма: %v", err)
	}

	// Байты пропадают в обход полки
	if err := os.Remove(store.FullPath(rec.StoragePath)); err != nil {
		t.Fatalf("ошибка внешнего удаления: %v", err)
	}

	if removed := sw.RunOnce(); removed != 1 {
		t.Errorf("removed: хотели 1, получили %d", removed)
	}
	if sh.Count() != 0 {
		t.Errorf("живых записей: хотели 0, получили %d", sh.Count())
	}
}

// TestRunOnce_SweepsScratch: устаревшие копии области экспорта удаляются.
func TestRunOnce_SweepsScratch(t *testing.T) {
	sw, _, _, scratchDir := setupSweeper(t)

	aged := filepath.Join(scratchDir, "export.pdf")
	if err := os.WriteFile(aged, []byte("x"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(aged, oldTime, oldTime); err != nil {
		t.Fatalf("ошибка изменения mtime: %v", err)
	}

	sw.RunOnce()

	if _, err := os.Stat(aged); !os.IsNotExist(err) {
		t.Error("устаревшая копия экспорта должна быть удалена")
	}
}

// TestRunOnce_Idempotent: повторный цикл без изменений ничего не удаляет.
func TestRunOnce_Idempotent(t *testing.T) {
	sw, sh, _, _ := setupSweeper(t)

	src := filepath.Join(t.TempDir(), "keep.txt")
	if err := os.WriteFile(src, []byte("живое содержимое"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	if _, err := sh.Add(context.Background(), src, "keep.txt"); err != nil {
		t.Fatalf("ошибка приёма: %v", err)
	}

	if removed := sw.RunOnce(); removed != 0 {
		t.Errorf("первый цикл: хотели 0, получили %d", removed)
	}
	if removed := sw.RunOnce(); removed != 0 {
		t.Errorf("второй цикл: хотели 0, получили %d", removed)
	}
	if sh.Count() != 1 {
		t.Errorf("живых записей: хотели 1, получили %d", sh.Count())
	}
}

// TestStartStop проверяет жизненный цикл фоновой горутины.
func TestStartStop(t *testing.T) {
	sw, _, _, _ := setupSweeper(t)

	sw.Start(context.Background())
	// Повторный запуск игнорируется
	sw.Start(context.Background())

	sw.Stop()
	// Повторная остановка безопасна
	sw.Stop()
}
