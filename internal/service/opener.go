package service

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Opener — сквозные вызовы сервисов операционной системы: открыть файл
// приложением по умолчанию, показать в файловом менеджере, положить
// текст в системный буфер обмена. Результат команд не интерпретируется,
// возвращается только факт успеха или ошибки запуска.
type Opener struct {
	logger *slog.Logger
}

// NewOpener создаёт обёртку над сервисами ОС.
func NewOpener(logger *slog.Logger) *Opener {
	return &Opener{
		logger: logger.With(slog.String("component", "opener")),
	}
}

// Open открывает файл приложением по умолчанию.
func (o *Opener) Open(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", path)
	}

	o.logger.Debug("Открытие файла", slog.String("path", path))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	return nil
}

// Reveal показывает файл в файловом менеджере.
func (o *Opener) Reveal(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-R", path)
	default:
		// Универсального способа выделить файл нет, открываем директорию
		cmd = exec.CommandContext(ctx, "xdg-open", filepath.Dir(path))
	}

	o.logger.Debug("Показ файла в файловом менеджере", slog.String("path", path))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ошибка показа файла %s: %w", path, err)
	}
	return nil
}

// CopyText кладёт текст в системный буфер обмена.
func (o *Opener) CopyText(ctx context.Context, text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "pbcopy")
	default:
		cmd = exec.CommandContext(ctx, "xclip", "-selection", "clipboard")
	}
	cmd.Stdin = strings.NewReader(text)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ошибка копирования в буфер обмена: %w", err)
	}

	o.logger.Debug("Текст скопирован в буфер обмена", slog.Int("length", len(text)))
	return nil
}
