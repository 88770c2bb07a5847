package scratch

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestPlace проверяет копирование файла под отображаемым именем.
func TestPlace(t *testing.T) {
	area, err := New(filepath.Join(t.TempDir(), "scratch"), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания области экспорта: %v", err)
	}

	srcPath := filepath.Join(t.TempDir(), "src.bin")
	content := []byte("данные для экспорта")
	if err := os.WriteFile(srcPath, content, 0o640); err != nil {
		t.Fatalf("ошибка создания исходного файла: %v", err)
	}

	path, err := area.Place(srcPath, "Отчёт 2026.pdf")
	if err != nil {
		t.Fatalf("ошибка копирования: %v", err)
	}

	if filepath.Base(path) != "Отчёт 2026.pdf" {
		t.Errorf("имя копии: ожидалось %q, получено %q", "Отчёт 2026.pdf", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("копия недоступна: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое копии не совпадает")
	}
}

// TestPlace_Overwrite проверяет перезапись при коллизии имён.
func TestPlace_Overwrite(t *testing.T) {
	area, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания области экспорта: %v", err)
	}

	srcDir := t.TempDir()
	first := filepath.Join(srcDir, "a.txt")
	second := filepath.Join(srcDir, "b.txt")
	if err := os.WriteFile(first, []byte("первый"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	if err := os.WriteFile(second, []byte("второй"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}

	if _, err := area.Place(first, "same.txt"); err != nil {
		t.Fatalf("ошибка первого копирования: %v", err)
	}
	path, err := area.Place(second, "same.txt")
	if err != nil {
		t.Fatalf("ошибка второго копирования: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("копия недоступна: %v", err)
	}
	if string(data) != "второй" {
		t.Errorf("ожидалась перезапись, получено %q", string(data))
	}
}

// TestSweep проверяет удаление копий старше maxAge по mtime.
func TestSweep(t *testing.T) {
	dir := t.TempDir()
	area, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания области экспорта: %v", err)
	}

	oldPath := filepath.Join(dir, "old.txt")
	freshPath := filepath.Join(dir, "fresh.txt")
	if err := os.WriteFile(oldPath, []byte("x"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	if err := os.WriteFile(freshPath, []byte("x"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}

	// Состариваем первый файл
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, oldTime, oldTime); err != nil {
		t.Fatalf("ошибка изменения mtime: %v", err)
	}

	removed := area.Sweep(time.Hour)
	if removed != 1 {
		t.Errorf("removed: хотели 1, получили %d", removed)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("устаревшая копия должна быть удалена")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Error("свежая копия не должна удаляться")
	}
}

// TestSweep_Idempotent проверяет, что повторная очистка ничего не удаляет.
func TestSweep_Idempotent(t *testing.T) {
	dir := t.TempDir()
	area, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания области экспорта: %v", err)
	}

	path := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(path, []byte("x"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, oldTime, oldTime); err != nil {
		t.Fatalf("ошибка изменения mtime: %v", err)
	}

	if removed := area.Sweep(time.Hour); removed != 1 {
		t.Fatalf("первая очистка: хотели 1, получили %d", removed)
	}
	if removed := area.Sweep(time.Hour); removed != 0 {
		t.Errorf("вторая очистка: хотели 0, получили %d", removed)
	}
}
