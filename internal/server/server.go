// Пакет server — HTTP-сервер демона DropShelf с graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropshelf/dropshelf/internal/api/handlers"
	"github.com/dropshelf/dropshelf/internal/api/middleware"
	"github.com/dropshelf/dropshelf/internal/config"
)

// Handlers — набор доменных обработчиков, монтируемых в роутер.
type Handlers struct {
	Files       *handlers.FilesHandler
	Clipboard   *handlers.ClipboardHandler
	System      *handlers.SystemHandler
	Maintenance *handlers.MaintenanceHandler
	Health      *handlers.HealthHandler
	// Auth — JWT middleware для /api/v1; nil — API без аутентификации
	Auth *middleware.JWTAuth
}

// Server — HTTP-сервер демона.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints: health и метрики без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if h.Auth != nil {
			r.Use(h.Auth.Middleware())
		}

		r.Get("/info", h.System.GetInfo)

		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.Files.AddFile)
			r.Get("/", h.Files.ListFiles)
			r.Delete("/", h.Files.DeleteAll)

			r.Route("/{fileId}", func(r chi.Router) {
				r.Get("/", h.Files.GetFile)
				r.Delete("/", h.Files.DeleteFile)
				r.Post("/convert", h.Files.ConvertFile)
				r.Post("/open", h.Files.OpenFile)
				r.Post("/reveal", h.Files.RevealFile)
				r.Post("/copy-path", h.Files.CopyPath)
				r.Post("/export", h.Files.ExportFile)
			})
		})

		r.Route("/clipboard", func(r chi.Router) {
			r.Post("/", h.Clipboard.RecordEntry)
			r.Get("/", h.Clipboard.ListEntries)
			r.Delete("/", h.Clipboard.ClearHistory)
			r.Post("/{entryId}/copy", h.Clipboard.CopyEntry)
		})

		r.Post("/maintenance/sweep", h.Maintenance.Sweep)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // конвертация отвечает синхронно
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// из конфигурации.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
