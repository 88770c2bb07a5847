// Пакет convert — конвертация файлов полки между форматами.
//
// Полка не знает, как выполняется преобразование: она обращается
// к Backend и получает либо путь к готовому файлу, либо ошибку.
// Допустимость пары (категория, целевой формат) проверяется статической
// таблицей возможностей: конвертация возможна только внутри категории
// (image↔image, document→document).
package convert

import (
	"context"

	"github.com/dropshelf/dropshelf/internal/domain/model"
)

// Request — запрос на конвертацию одного файла.
type Request struct {
	// SourcePath — абсолютный путь к исходным байтам
	SourcePath string
	// SourceFormat — формат исходного файла (расширение без точки)
	SourceFormat string
	// SourceKind — категория исходного файла
	SourceKind model.FileKind
	// TargetFormat — целевой формат (расширение без точки)
	TargetFormat string
}

// Result — результат успешной конвертации.
type Result struct {
	// OutputPath — абсолютный путь к сконвертированному файлу.
	// Файл принадлежит вызывающему: он обязан переместить или удалить его.
	OutputPath string
	// Size — размер результата в байтах
	Size int64
}

// Backend — внешний движок конвертации. Реализации: Local (in-process)
// и Remote (HTTP-сервис).
type Backend interface {
	// Convert выполняет преобразование. Долгая операция: обязана уважать
	// отмену контекста. При ошибке никакие файлы за собой не оставляет.
	Convert(ctx context.Context, req Request) (*Result, error)
}

// capabilities — статическая таблица возможностей конвертации.
// Ключ — категория, значение — множество целевых форматов.
var capabilities = map[model.FileKind]map[string]bool{
	model.KindImage: {
		"png":  true,
		"jpeg": true,
		"jpg":  true,
		"gif":  true,
	},
	model.KindDocument: {
		// Извлечение текста и пересборка PDF
		"txt": true,
		"pdf": true,
	},
}

// CanConvert проверяет по таблице возможностей, допустима ли конвертация
// файла категории kind в целевой формат. Межкатегорийные запросы
// (например, изображение → документ) всегда отклоняются.
func CanConvert(kind model.FileKind, targetFormat string) bool {
	targets, ok := capabilities[kind]
	if !ok {
		return false
	}
	return targets[normalizeFormat(targetFormat)]
}

// TargetKind возвращает категорию результата конвертации.
// Конвертация не пересекает границы категорий, поэтому категория
// определяется целевым форматом внутри той же таблицы.
func TargetKind(targetFormat string) model.FileKind {
	return model.KindForName("x." + normalizeFormat(targetFormat))
}

// normalizeFormat приводит формат к каноническому виду.
func normalizeFormat(format string) string {
	switch format {
	case "jpg":
		return "jpeg"
	default:
		return format
	}
}
