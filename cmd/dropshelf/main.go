// Точка входа демона DropShelf — временной полки для файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropshelf/dropshelf/internal/api/handlers"
	"github.com/dropshelf/dropshelf/internal/api/middleware"
	"github.com/dropshelf/dropshelf/internal/clipboard"
	"github.com/dropshelf/dropshelf/internal/config"
	"github.com/dropshelf/dropshelf/internal/convert"
	"github.com/dropshelf/dropshelf/internal/server"
	"github.com/dropshelf/dropshelf/internal/service"
	"github.com/dropshelf/dropshelf/internal/shelf"
	"github.com/dropshelf/dropshelf/internal/storage/filestore"
	"github.com/dropshelf/dropshelf/internal/storage/scratch"
)

var rootCmd = &cobra.Command{
	Use:   "dropshelf",
	Short: "Локальный демон временной полки для файлов",
	Long: `DropShelf — демон временного хранилища файлов с квотой и окном
хранения. Принимает файлы от GUI-клиента, вытесняет старые записи,
конвертирует форматы и ведёт историю буфера обмена.

Конфигурация задаётся переменными окружения с префиксом DS_.`,
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить демон",
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Показать версию",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("dropshelf %s\n", config.Version)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serve собирает компоненты демона и блокируется до сигнала завершения.
func serve() error {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("DropShelf запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Int64("max_shelf_bytes", cfg.MaxShelfBytes),
		slog.String("quota_policy", cfg.QuotaPolicy),
		slog.Duration("retention_window", cfg.RetentionWindow),
	)

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище полки
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("ошибка инициализации FileStore: %w", err)
	}

	// Записи не переживают рестарт: остатки предыдущего процесса — мусор
	purged, err := store.Purge()
	if err != nil {
		return fmt.Errorf("ошибка очистки директории данных: %w", err)
	}
	if purged > 0 {
		logger.Info("Удалены остатки предыдущего процесса", slog.Int("purged", purged))
	}

	// 2. Область экспорта
	area, err := scratch.New(cfg.ScratchDir, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации области экспорта: %w", err)
	}

	// 3. Движок конвертации: внешний сервис или in-process
	backend, err := buildConvertBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации конвертера: %w", err)
	}

	// 4. Полка
	sh := shelf.New(store, backend, shelf.Config{
		MaxShelfBytes:  cfg.MaxShelfBytes,
		MaxFileSize:    cfg.MaxFileSize,
		Retention:      cfg.RetentionWindow,
		QuotaPolicy:    shelf.QuotaPolicy(cfg.QuotaPolicy),
		MaxConversions: cfg.MaxConversions,
	}, logger)

	// 5. История буфера обмена
	history := clipboard.New(cfg.ClipboardHistorySize, cfg.ClipboardTTL, logger)

	// 6. Фоновые процессы
	ctx := context.Background()

	// 6.1 Периодическая сверка полки и очистка области экспорта
	sweeper := service.NewSweeper(sh, area, cfg.SweepInterval, cfg.ScratchTTL, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 6.2 topologymetrics — мониторинг внешнего конвертера (если настроен)
	var deps handlers.DependencyHealthChecker
	if cfg.ConverterURL != "" {
		serviceID := cfg.DephealthName
		if serviceID == "" {
			serviceID = "dropshelf"
		}
		dephealthSvc, dhErr := service.NewDephealthService(
			serviceID,
			cfg.DephealthGroup,
			cfg.ConverterURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен")
			defer dephealthSvc.Stop()
			deps = dephealthSvc
		}
	}

	// 7. JWT-аутентификация (опционально)
	var auth *middleware.JWTAuth
	if cfg.JWKSUrl != "" {
		auth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: 5 * time.Minute,
			JWTLeeway:       30 * time.Second,
		}, logger)
		if err != nil {
			return fmt.Errorf("ошибка инициализации JWT auth: %w", err)
		}
		logger.Info("JWT-аутентификация включена", slog.String("jwks_url", cfg.JWKSUrl))
	}

	// 8. HTTP handlers и сервер
	opener := service.NewOpener(logger)

	srv := server.New(cfg, logger, server.Handlers{
		Files:       handlers.NewFilesHandler(sh, store, area, opener),
		Clipboard:   handlers.NewClipboardHandler(history, opener),
		System:      handlers.NewSystemHandler(cfg, sh, getDiskUsage),
		Maintenance: handlers.NewMaintenanceHandler(sweeper),
		Health:      handlers.NewHealthHandler(cfg.DataDir, deps),
		Auth:        auth,
	})

	return srv.Run()
}

// buildConvertBackend выбирает движок конвертации по конфигурации.
func buildConvertBackend(cfg *config.Config, logger *slog.Logger) (convert.Backend, error) {
	workDir := cfg.DataDir + "/convert"

	if cfg.ConverterURL != "" {
		logger.Info("Конвертация через внешний сервис",
			slog.String("converter_url", cfg.ConverterURL),
		)
		return convert.NewRemote(cfg.ConverterURL, workDir, cfg.ConverterTimeout, logger)
	}

	logger.Info("Конвертация in-process")
	return convert.NewLocal(workDir, logger)
}
