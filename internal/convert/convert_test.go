package convert

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dropshelf/dropshelf/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestCanConvert проверяет таблицу возможностей конвертации.
func TestCanConvert(t *testing.T) {
	tests := []struct {
		name   string
		kind   model.FileKind
		target string
		want   bool
	}{
		{"изображение в png", model.KindImage, "png", true},
		{"изображение в jpeg", model.KindImage, "jpeg", true},
		{"изображение в jpg (алиас)", model.KindImage, "jpg", true},
		{"изображение в gif", model.KindImage, "gif", true},
		{"изображение в текст", model.KindImage, "txt", false},
		{"документ в текст", model.KindDocument, "txt", true},
		{"документ в pdf", model.KindDocument, "pdf", true},
		{"документ в png", model.KindDocument, "png", false},
		{"архив никуда", model.KindArchive, "zip", false},
		{"код никуда", model.KindCode, "txt", false},
		{"прочее никуда", model.KindOther, "png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanConvert(tt.kind, tt.target); got != tt.want {
				t.Errorf("CanConvert(%s, %s): хотели %v, получили %v", tt.kind, tt.target, tt.want, got)
			}
		})
	}
}

// TestTargetKind проверяет определение категории результата.
func TestTargetKind(t *testing.T) {
	tests := []struct {
		target string
		want   model.FileKind
	}{
		{"png", model.KindImage},
		{"jpg", model.KindImage},
		{"txt", model.KindDocument},
		{"pdf", model.KindDocument},
	}

	for _, tt := range tests {
		if got := TargetKind(tt.target); got != tt.want {
			t.Errorf("TargetKind(%s): хотели %s, получили %s", tt.target, tt.want, got)
		}
	}
}

// TestNormalizeFormat проверяет канонизацию алиасов форматов.
func TestNormalizeFormat(t *testing.T) {
	if got := normalizeFormat("jpg"); got != "jpeg" {
		t.Errorf("normalizeFormat(jpg): хотели jpeg, получили %s", got)
	}
	if got := normalizeFormat("png"); got != "png" {
		t.Errorf("normalizeFormat(png): хотели png, получили %s", got)
	}
}

// makeTestPNG создаёт маленькое PNG-изображение на диске.
func makeTestPNG(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("ошибка кодирования PNG: %v", err)
	}
	return path
}

// TestLocal_ConvertImage проверяет перекодирование PNG → JPEG in-process.
func TestLocal_ConvertImage(t *testing.T) {
	local, err := NewLocal(filepath.Join(t.TempDir(), "work"), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания Local: %v", err)
	}

	src := makeTestPNG(t)
	result, err := local.Convert(context.Background(), Request{
		SourcePath:   src,
		SourceFormat: "png",
		SourceKind:   model.KindImage,
		TargetFormat: "jpeg",
	})
	if err != nil {
		t.Fatalf("ошибка конвертации: %v", err)
	}
	defer os.Remove(result.OutputPath)

	if result.Size <= 0 {
		t.Errorf("размер результата должен быть положительным, получено %d", result.Size)
	}

	out, err := os.Open(result.OutputPath)
	if err != nil {
		t.Fatalf("результат недоступен: %v", err)
	}
	defer out.Close()
	if _, err := jpeg.Decode(out); err != nil {
		t.Errorf("результат не является корректным JPEG: %v", err)
	}
}

// TestLocal_ConvertImage_JpgAlias: алиас jpg даёт тот же JPEG.
func TestLocal_ConvertImage_JpgAlias(t *testing.T) {
	local, err := NewLocal(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания Local: %v", err)
	}

	result, err := local.Convert(context.Background(), Request{
		SourcePath:   makeTestPNG(t),
		SourceFormat: "png",
		SourceKind:   model.KindImage,
		TargetFormat: "jpg",
	})
	if err != nil {
		t.Fatalf("ошибка конвертации: %v", err)
	}
	defer os.Remove(result.OutputPath)

	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("результат недоступен: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("результат не является корректным JPEG: %v", err)
	}
}

// TestLocal_ConvertImage_BadSource: повреждённое изображение — ошибка
// без файлов-сирот в рабочей директории.
func TestLocal_ConvertImage_BadSource(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "work")
	local, err := NewLocal(workDir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания Local: %v", err)
	}

	src := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(src, []byte("это не изображение"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}

	_, err = local.Convert(context.Background(), Request{
		SourcePath:   src,
		SourceFormat: "png",
		SourceKind:   model.KindImage,
		TargetFormat: "jpeg",
	})
	if err == nil {
		t.Fatal("ожидалась ошибка декодирования")
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("ошибка чтения рабочей директории: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("рабочая директория должна быть пустой, найдено %d файлов", len(entries))
	}
}

// TestLocal_UnsupportedKind: категория без конвертации — ошибка.
func TestLocal_UnsupportedKind(t *testing.T) {
	local, err := NewLocal(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания Local: %v", err)
	}

	_, err = local.Convert(context.Background(), Request{
		SourcePath:   "/tmp/whatever.zip",
		SourceFormat: "zip",
		SourceKind:   model.KindArchive,
		TargetFormat: "tar",
	})
	if err == nil {
		t.Fatal("ожидалась ошибка для неподдерживаемой категории")
	}
}

// TestRemote_Convert проверяет протокол обмена с внешним сервисом.
func TestRemote_Convert(t *testing.T) {
	converted := []byte("байты результата конвертации")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("метод: хотели POST, получили %s", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/convert") {
			t.Errorf("путь: хотели /convert, получили %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("source_format"); got != "png" {
			t.Errorf("source_format: хотели png, получили %s", got)
		}
		if got := r.URL.Query().Get("target_format"); got != "jpeg" {
			t.Errorf("target_format: хотели jpeg, получили %s", got)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("ошибка чтения тела: %v", err)
		}
		if string(body) != "исходные байты" {
			t.Errorf("тело запроса: получено %q", string(body))
		}

		w.WriteHeader(http.StatusOK)
		w.Write(converted) //nolint:errcheck
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL, t.TempDir(), 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания Remote: %v", err)
	}

	src := filepath.Join(t.TempDir(), "src.png")
	if err := os.WriteFile(src, []byte("исходные байты"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}

	result, err := remote.Convert(context.Background(), Request{
		SourcePath:   src,
		SourceFormat: "png",
		SourceKind:   model.KindImage,
		TargetFormat: "jpg", // алиас нормализуется перед отправкой
	})
	if err != nil {
		t.Fatalf("ошибка конвертации: %v", err)
	}
	defer os.Remove(result.OutputPath)

	if result.Size != int64(len(converted)) {
		t.Errorf("размер: хотели %d, получили %d", len(converted), result.Size)
	}
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("результат недоступен: %v", err)
	}
	if !bytes.Equal(data, converted) {
		t.Error("содержимое результата не совпадает")
	}
}

// TestRemote_Convert_ErrorEnvelope: код ошибки сервиса попадает в текст.
func TestRemote_Convert_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"CONVERSION_UNSUPPORTED","message":"формат не поддерживается"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL, t.TempDir(), 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания Remote: %v", err)
	}

	src := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(src, []byte("x"), 0o640); err != nil {
		t.Fatalf("ошибка создания файла: %v", err)
	}

	_, err = remote.Convert(context.Background(), Request{
		SourcePath:   src,
		SourceFormat: "png",
		TargetFormat: "jpeg",
	})
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if !strings.Contains(err.Error(), "CONVERSION_UNSUPPORTED") {
		t.Errorf("в ошибке должен быть код сервиса, получено: %v", err)
	}
}
