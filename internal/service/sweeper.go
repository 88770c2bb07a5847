// Пакет service — фоновые и вспомогательные сервисы демона.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dropshelf/dropshelf/internal/shelf"
	"github.com/dropshelf/dropshelf/internal/storage/scratch"
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_sweep_runs_total",
		Help: "Количество выполненных циклов сверки",
	})
	sweepRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ds_sweep_removed_total",
		Help: "Количество удалённых объектов по источникам",
	}, []string{"source"})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ds_sweep_duration_seconds",
		Help:    "Длительность цикла сверки",
		Buckets: prometheus.DefBuckets,
	})
)

// Sweeper — периодическая сверка полки с файловой системой и очистка
// области экспорта. Полка сама таймер не держит: расписание принадлежит
// этому сервису.
type Sweeper struct {
	shelf      *shelf.Shelf
	scratch    *scratch.Area
	interval   time.Duration
	scratchTTL time.Duration
	logger     *slog.Logger

	// runMu исключает перекрытие циклов: периодический тик и ручной
	// запуск через API не выполняются одновременно
	runMu sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
	mu     sync.Mutex
	active bool
}

// NewSweeper создаёт сервис сверки.
func NewSweeper(sh *shelf.Shelf, area *scratch.Area, interval, scratchTTL time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		shelf:      sh,
		scratch:    area,
		interval:   interval,
		scratchTTL: scratchTTL,
		logger:     logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает периодическую сверку в отдельной горутине.
// Повторный вызов на запущенном сервисе игнорируется.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.logger.Warn("Сервис сверки уже запущен")
		return
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.active = true

	go s.loop(ctx)

	s.logger.Info("Сервис сверки запущен",
		slog.Duration("interval", s.interval),
		slog.Duration("scratch_ttl", s.scratchTTL),
	)
}

// Stop останавливает периодическую сверку и ждёт завершения текущего цикла.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("Сервис сверки остановлен")
}

// loop — основной цикл сервиса.
func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce выполняет один цикл сверки: валидация полки и очистка области
// экспорта. Безопасен для ручного вызова параллельно с расписанием.
// Возвращает количество удалённых записей полки.
func (s *Sweeper) RunOnce() int {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()

	removed := s.shelf.ValidateAndCleanup()
	if removed > 0 {
		sweepRemovedTotal.WithLabelValues("shelf").Add(float64(removed))
	}

	swept := s.scratch.Sweep(s.scratchTTL)
	if swept > 0 {
		sweepRemovedTotal.WithLabelValues("scratch").Add(float64(swept))
	}

	sweepRunsTotal.Inc()
	sweepDuration.Observe(time.Since(start).Seconds())

	if removed > 0 || swept > 0 {
		s.logger.Info("Цикл сверки завершён",
			slog.Int("shelf_removed", removed),
			slog.Int("scratch_removed", swept),
			slog.Duration("duration", time.Since(start)),
		)
	} else {
		s.logger.Debug("Цикл сверки завершён без изменений",
			slog.Duration("duration", time.Since(start)),
		)
	}

	return removed
}
