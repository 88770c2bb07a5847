// local.go — in-process движок конвертации.
//
// Изображения: декодирование/кодирование стандартными кодеками
// (image/png, image/jpeg, image/gif).
// Документы: извлечение текста из PDF (ledongthuc/pdf) и пересборка
// PDF с оптимизацией (pdfcpu).
package convert

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"

	ledongpdf "github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dropshelf/dropshelf/internal/domain/model"
)

// jpegQuality — качество JPEG при перекодировании.
const jpegQuality = 90

// Local — in-process реализация Backend.
type Local struct {
	// workDir — директория для результатов конвертации.
	// Вызывающий забирает файл из неё (move) либо Local удаляет
	// его сам при ошибке.
	workDir string
	logger  *slog.Logger
}

// NewLocal создаёт in-process движок конвертации. Проверяет и создаёт
// рабочую директорию если она не существует.
func NewLocal(workDir string, logger *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать рабочую директорию %s: %w", workDir, err)
	}

	return &Local{
		workDir: workDir,
		logger:  logger.With(slog.String("component", "convert_local")),
	}, nil
}

// Convert выполняет преобразование in-process.
// Возвращает ошибку для пар, отсутствующих в таблице возможностей.
func (l *Local) Convert(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !CanConvert(req.SourceKind, req.TargetFormat) {
		return nil, fmt.Errorf("конвертация %s → %s не поддерживается", req.SourceKind, req.TargetFormat)
	}

	target := normalizeFormat(req.TargetFormat)

	switch req.SourceKind {
	case model.KindImage:
		return l.convertImage(ctx, req, target)
	case model.KindDocument:
		return l.convertDocument(ctx, req, target)
	default:
		return nil, fmt.Errorf("категория %s не поддерживает конвертацию", req.SourceKind)
	}
}

// convertImage перекодирует изображение в целевой формат.
func (l *Local) convertImage(ctx context.Context, req Request, target string) (*Result, error) {
	src, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия исходного файла: %w", err)
	}
	defer src.Close()

	// image.Decode сам определяет исходный формат по сигнатуре
	img, srcFormat, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования изображения: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(l.workDir, "convert-*."+target)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла результата: %w", err)
	}

	w := bufio.NewWriter(out)
	switch target {
	case "png":
		err = png.Encode(w, img)
	case "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		err = gif.Encode(w, img, nil)
	default:
		err = fmt.Errorf("неизвестный целевой формат изображения: %s", target)
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка кодирования изображения: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка закрытия файла результата: %w", err)
	}

	info, err := os.Stat(out.Name())
	if err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка stat файла результата: %w", err)
	}

	l.logger.Debug("Изображение перекодировано",
		slog.String("from", srcFormat),
		slog.String("to", target),
		slog.Int64("size", info.Size()),
	)

	return &Result{OutputPath: out.Name(), Size: info.Size()}, nil
}

// convertDocument обрабатывает документы: pdf → txt (извлечение текста)
// и pdf → pdf (пересборка с оптимизацией).
func (l *Local) convertDocument(ctx context.Context, req Request, target string) (*Result, error) {
	if req.SourceFormat != "pdf" {
		return nil, fmt.Errorf("исходный формат документа %s не поддерживается", req.SourceFormat)
	}

	switch target {
	case "txt":
		return l.extractPDFText(ctx, req.SourcePath)
	case "pdf":
		return l.optimizePDF(ctx, req.SourcePath)
	default:
		return nil, fmt.Errorf("неизвестный целевой формат документа: %s", target)
	}
}

// extractPDFText извлекает plain text из PDF.
func (l *Local) extractPDFText(ctx context.Context, sourcePath string) (*Result, error) {
	f, reader, err := ledongpdf.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия PDF: %w", err)
	}
	defer f.Close()

	text, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("ошибка извлечения текста из PDF: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(l.workDir, "convert-*.txt")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла результата: %w", err)
	}

	size, err := io.Copy(out, text)
	if err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка записи текста: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка закрытия файла результата: %w", err)
	}

	return &Result{OutputPath: out.Name(), Size: size}, nil
}

// optimizePDF пересобирает PDF с оптимизацией через pdfcpu.
func (l *Local) optimizePDF(ctx context.Context, sourcePath string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(l.workDir, "convert-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла результата: %w", err)
	}
	outPath := out.Name()
	out.Close()

	cfg := pdfmodel.NewDefaultConfiguration()
	cfg.ValidationMode = pdfmodel.ValidationRelaxed

	if err := pdfapi.OptimizeFile(sourcePath, outPath, cfg); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("ошибка оптимизации PDF: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("ошибка stat файла результата: %w", err)
	}

	return &Result{OutputPath: outPath, Size: info.Size()}, nil
}
