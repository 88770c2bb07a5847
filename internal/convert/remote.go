// remote.go — конвертация через внешний HTTP-сервис.
package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Remote — Backend, отправляющий байты внешнему сервису конвертации.
// Протокол: POST {baseURL}/convert?source_format=X&target_format=Y,
// тело запроса — исходные байты, тело ответа 200 — результат.
// Ошибки приходят в JSON-конверте {"error": {"code", "message"}}.
type Remote struct {
	baseURL string
	workDir string
	client  *http.Client
	logger  *slog.Logger
}

// remoteError — конверт ошибки внешнего сервиса.
type remoteError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewRemote создаёт Backend для внешнего сервиса конвертации.
func NewRemote(baseURL, workDir string, timeout time.Duration, logger *slog.Logger) (*Remote, error) {
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать рабочую директорию %s: %w", workDir, err)
	}

	return &Remote{
		baseURL: baseURL,
		workDir: workDir,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "convert_remote")),
	}, nil
}

// Convert отправляет исходные байты внешнему сервису и сохраняет
// результат во временный файл. Файл принадлежит вызывающему.
func (r *Remote) Convert(ctx context.Context, req Request) (*Result, error) {
	src, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия исходного файла: %w", err)
	}
	defer src.Close()

	q := url.Values{}
	q.Set("source_format", req.SourceFormat)
	q.Set("target_format", normalizeFormat(req.TargetFormat))

	endpoint := fmt.Sprintf("%s/convert?%s", r.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, src)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ошибка обращения к сервису конвертации: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope remoteError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error.Code != "" {
			return nil, fmt.Errorf("сервис конвертации вернул %s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("сервис конвертации вернул статус %d", resp.StatusCode)
	}

	out, err := os.CreateTemp(r.workDir, "convert-*."+normalizeFormat(req.TargetFormat))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла результата: %w", err)
	}

	size, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка чтения результата: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("ошибка закрытия файла результата: %w", err)
	}

	r.logger.Debug("Конвертация выполнена внешним сервисом",
		slog.String("target_format", req.TargetFormat),
		slog.Int64("size", size),
	)

	return &Result{OutputPath: out.Name(), Size: size}, nil
}
