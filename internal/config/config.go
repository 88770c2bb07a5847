// Пакет config — загрузка и валидация конфигурации демона DropShelf
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации демона.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Адрес, который слушает сервер (по умолчанию только localhost)
	BindAddr string
	// Путь к директории хранения файлов полки
	DataDir string
	// Путь к области экспорта (drag-out копии)
	ScratchDir string
	// Квота на суммарный размер файлов полки в байтах (обязательный параметр)
	MaxShelfBytes int64
	// Максимальный размер одного файла в байтах, 0 — без ограничения
	MaxFileSize int64
	// Окно хранения записи, 0 — без ограничения по возрасту
	RetentionWindow time.Duration
	// Политика приёма при нехватке места: evict-oldest или reject-newest
	QuotaPolicy string
	// Интервал периодической сверки
	SweepInterval time.Duration
	// Срок жизни копий в области экспорта
	ScratchTTL time.Duration
	// Лимит одновременных конвертаций
	MaxConversions int64
	// URL внешнего сервиса конвертации; пусто — конвертация in-process
	ConverterURL string
	// Таймаут запросов к внешнему сервису конвертации
	ConverterTimeout time.Duration
	// Размер истории буфера обмена (записей)
	ClipboardHistorySize int
	// Срок жизни записи истории буфера обмена
	ClipboardTTL time.Duration
	// URL JWKS endpoint; пусто — API без аутентификации
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя экземпляра для метрик topologymetrics
	DephealthName string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// DS_PORT — порт HTTP-сервера (по умолчанию 8710)
	port, err := getEnvInt("DS_PORT", 8710)
	if err != nil {
		return nil, fmt.Errorf("DS_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("DS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// DS_BIND_ADDR — адрес сервера (по умолчанию 127.0.0.1, демон локальный)
	cfg.BindAddr = getEnvDefault("DS_BIND_ADDR", "127.0.0.1")

	// DS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("DS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// DS_SCRATCH_DIR — область экспорта (по умолчанию {DataDir}/scratch)
	cfg.ScratchDir = getEnvDefault("DS_SCRATCH_DIR", cfg.DataDir+"/scratch")

	// DS_MAX_SHELF_BYTES — обязательный, квота полки в байтах
	cfg.MaxShelfBytes, err = getEnvInt64Required("DS_MAX_SHELF_BYTES")
	if err != nil {
		return nil, err
	}

	// DS_MAX_FILE_SIZE — лимит одного файла (по умолчанию 0 — без лимита)
	cfg.MaxFileSize, err = getEnvInt64("DS_MAX_FILE_SIZE", 0)
	if err != nil {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize < 0 {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: значение не может быть отрицательным")
	}
	if cfg.MaxFileSize > cfg.MaxShelfBytes {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: значение %d должно быть <= DS_MAX_SHELF_BYTES (%d)",
			cfg.MaxFileSize, cfg.MaxShelfBytes)
	}

	// DS_RETENTION_WINDOW — окно хранения (по умолчанию 24h)
	cfg.RetentionWindow, err = getEnvDuration("DS_RETENTION_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_RETENTION_WINDOW: %w", err)
	}

	// DS_QUOTA_POLICY — политика приёма (по умолчанию evict-oldest)
	cfg.QuotaPolicy = getEnvDefault("DS_QUOTA_POLICY", "evict-oldest")
	if cfg.QuotaPolicy != "evict-oldest" && cfg.QuotaPolicy != "reject-newest" {
		return nil, fmt.Errorf("DS_QUOTA_POLICY: недопустимое значение %q, допустимые: evict-oldest, reject-newest",
			cfg.QuotaPolicy)
	}

	// DS_SWEEP_INTERVAL — интервал сверки (по умолчанию 5s)
	cfg.SweepInterval, err = getEnvDuration("DS_SWEEP_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_SWEEP_INTERVAL: %w", err)
	}

	// DS_SCRATCH_TTL — срок жизни экспортных копий (по умолчанию 1h)
	cfg.ScratchTTL, err = getEnvDuration("DS_SCRATCH_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_SCRATCH_TTL: %w", err)
	}

	// DS_MAX_CONVERSIONS — лимит одновременных конвертаций (по умолчанию 2)
	maxConversions, err := getEnvInt("DS_MAX_CONVERSIONS", 2)
	if err != nil {
		return nil, fmt.Errorf("DS_MAX_CONVERSIONS: %w", err)
	}
	if maxConversions <= 0 {
		return nil, fmt.Errorf("DS_MAX_CONVERSIONS: значение должно быть положительным")
	}
	cfg.MaxConversions = int64(maxConversions)

	// DS_CONVERTER_URL — внешний конвертер (опционально)
	cfg.ConverterURL = getEnvDefault("DS_CONVERTER_URL", "")

	// DS_CONVERTER_TIMEOUT — таймаут внешнего конвертера (по умолчанию 2m)
	cfg.ConverterTimeout, err = getEnvDuration("DS_CONVERTER_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DS_CONVERTER_TIMEOUT: %w", err)
	}

	// DS_CLIPBOARD_HISTORY_SIZE — размер истории буфера обмена (по умолчанию 100)
	cfg.ClipboardHistorySize, err = getEnvInt("DS_CLIPBOARD_HISTORY_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("DS_CLIPBOARD_HISTORY_SIZE: %w", err)
	}
	if cfg.ClipboardHistorySize <= 0 {
		return nil, fmt.Errorf("DS_CLIPBOARD_HISTORY_SIZE: значение должно быть положительным")
	}

	// DS_CLIPBOARD_TTL — срок жизни записи истории (по умолчанию 24h)
	cfg.ClipboardTTL, err = getEnvDuration("DS_CLIPBOARD_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_CLIPBOARD_TTL: %w", err)
	}

	// DS_JWKS_URL — JWKS endpoint (опционально, пусто — без аутентификации)
	cfg.JWKSUrl = getEnvDefault("DS_JWKS_URL", "")

	// DS_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("DS_JWKS_CA_CERT", "")

	// DS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DS_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "dropshelf")
	cfg.DephealthGroup = getEnvDefault("DS_DEPHEALTH_GROUP", "dropshelf")

	// DEPHEALTH_NAME — имя экземпляра для метрик (опционально)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// DS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DS_LOG_LEVEL: %w", err)
	}

	// DS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// DS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64Required возвращает обязательное int64 значение переменной окружения.
// Возвращает ошибку, если переменная не задана или значение некорректное (<=0).
func getEnvInt64Required(key string) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректное целое число: %q", key, val)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным, получено %d", key, n)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 24h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
