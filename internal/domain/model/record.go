// Пакет model — доменные модели DropShelf.
// FileRecord — запись о файле на полке: идентичность, путь к байтам,
// категория, размер и отпечаток содержимого.
package model

import (
	"path/filepath"
	"strings"
	"time"
)

// FileKind — грубая категория файла, определяется по расширению.
// Используется только для отображения в UI и проверки допустимости
// конвертации, не участвует в вытеснении.
type FileKind string

const (
	// KindDocument — документы (pdf, doc, txt, md и т.д.)
	KindDocument FileKind = "document"
	// KindImage — изображения
	KindImage FileKind = "image"
	// KindArchive — архивы
	KindArchive FileKind = "archive"
	// KindCode — исходный код
	KindCode FileKind = "code"
	// KindOther — всё остальное
	KindOther FileKind = "other"
)

// FileRecord — запись о файле на полке.
// Запись не переживает рестарт процесса: полка — временное хранилище,
// индекс существует только в памяти.
type FileRecord struct {
	// ID — уникальный идентификатор записи (UUID v4).
	// Присваивается при создании, никогда не переиспользуется.
	ID string `json:"id"`

	// DisplayName — оригинальное имя файла, как его видит пользователь
	DisplayName string `json:"display_name"`

	// StoragePath — имя файла на диске (относительно DS_DATA_DIR).
	// Байты принадлежат полке: при удалении записи удаляются и байты.
	StoragePath string `json:"storage_path"`

	// Kind — категория файла
	Kind FileKind `json:"kind"`

	// SizeBytes — размер на момент приёма. Не перемеряется,
	// кроме обновления при успешной конвертации.
	SizeBytes int64 `json:"size_bytes"`

	// CreatedAt — время приёма (UTC), основа возрастного вытеснения.
	// Сохраняется при конвертации.
	CreatedAt time.Time `json:"created_at"`

	// Fingerprint — SHA-256 содержимого. Используется для обнаружения
	// повторного приёма того же файла и внешнего изменения байтов
	// при валидации.
	Fingerprint string `json:"fingerprint"`
}

// Format возвращает формат файла — расширение DisplayName без точки,
// в нижнем регистре. Пустая строка, если расширения нет.
func (r *FileRecord) Format() string {
	ext := filepath.Ext(r.DisplayName)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// OlderThan проверяет, превысила ли запись окно хранения к моменту now.
func (r *FileRecord) OlderThan(now time.Time, retention time.Duration) bool {
	if retention <= 0 {
		return false
	}
	return now.Sub(r.CreatedAt) > retention
}

// kindByExt — таблица соответствия расширений категориям.
var kindByExt = map[string]FileKind{
	// Документы
	"pdf": KindDocument, "doc": KindDocument, "docx": KindDocument,
	"xls": KindDocument, "xlsx": KindDocument, "ppt": KindDocument,
	"pptx": KindDocument, "txt": KindDocument, "md": KindDocument,
	"rtf": KindDocument, "odt": KindDocument, "pages": KindDocument,
	"key": KindDocument, "numbers": KindDocument, "csv": KindDocument,

	// Изображения
	"png": KindImage, "jpg": KindImage, "jpeg": KindImage,
	"gif": KindImage, "webp": KindImage, "heic": KindImage,
	"tiff": KindImage, "bmp": KindImage, "svg": KindImage,
	"ico": KindImage,

	// Архивы
	"zip": KindArchive, "tar": KindArchive, "gz": KindArchive,
	"bz2": KindArchive, "xz": KindArchive, "7z": KindArchive,
	"rar": KindArchive, "dmg": KindArchive,

	// Код
	"go": KindCode, "swift": KindCode, "py": KindCode, "js": KindCode,
	"ts": KindCode, "c": KindCode, "h": KindCode, "cpp": KindCode,
	"rs": KindCode, "java": KindCode, "rb": KindCode, "sh": KindCode,
	"json": KindCode, "yaml": KindCode, "yml": KindCode, "toml": KindCode,
	"html": KindCode, "css": KindCode, "sql": KindCode,
}

// KindForName определяет категорию файла по расширению имени.
// Неизвестные расширения и имена без расширения — KindOther.
func KindForName(name string) FileKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return KindOther
	}
	if kind, ok := kindByExt[ext]; ok {
		return kind
	}
	return KindOther
}
