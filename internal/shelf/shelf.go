// Пакет shelf — ядро DropShelf: ограниченное временное хранилище файлов.
//
// Полка владеет упорядоченным набором записей и их байтами на диске,
// обеспечивает квоту по суммарному размеру, окно хранения по возрасту,
// сверку с файловой системой и конвертацию форматов через внешний Backend.
//
// Модель конкурентности: одна блокировка на всё состояние полки.
// Копирование байтов при приёме и сама конвертация выполняются вне
// блокировки, фиксация результата — под ней. Две конвертации одной
// записи взаимно исключены множеством converting, общее число
// одновременных конвертаций ограничено семафором.
package shelf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/dropshelf/dropshelf/internal/convert"
	"github.com/dropshelf/dropshelf/internal/domain/model"
	"github.com/dropshelf/dropshelf/internal/storage/filestore"
)

var (
	recordsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ds_shelf_records",
		Help: "Текущее количество записей на полке",
	})
	bytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ds_shelf_bytes",
		Help: "Суммарный размер файлов полки в байтах",
	})
	evictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ds_shelf_evictions_total",
		Help: "Количество вытеснений записей по причинам",
	}, []string{"reason"})
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ds_shelf_conversions_total",
		Help: "Количество конвертаций по результату",
	}, []string{"status"})
)

// QuotaPolicy — поведение приёма при нехватке места.
type QuotaPolicy string

const (
	// PolicyEvictOldest — вытеснять самые старые записи, пока новый
	// файл не поместится. Политика по умолчанию: свежая активность
	// важнее старой.
	PolicyEvictOldest QuotaPolicy = "evict-oldest"
	// PolicyRejectNewest — отклонять новый файл, если он не помещается.
	PolicyRejectNewest QuotaPolicy = "reject-newest"
)

// defaultMaxConversions — лимит одновременных конвертаций по умолчанию.
const defaultMaxConversions = 2

// Config — параметры полки.
type Config struct {
	// MaxShelfBytes — квота на суммарный размер файлов полки
	MaxShelfBytes int64
	// MaxFileSize — лимит размера одного файла, 0 — без ограничения
	MaxFileSize int64
	// Retention — окно хранения записи, 0 — без ограничения по возрасту
	Retention time.Duration
	// QuotaPolicy — поведение при нехватке места
	QuotaPolicy QuotaPolicy
	// MaxConversions — лимит одновременных конвертаций
	MaxConversions int64
}

// Shelf — временное хранилище файлов с вытеснением.
type Shelf struct {
	mu sync.Mutex
	// records — живые записи в порядке приёма (старые в начале)
	records []*model.FileRecord
	// byID — индекс записей по идентификатору
	byID map[string]*model.FileRecord
	// byFingerprint — индекс по отпечатку содержимого для дедупликации
	byFingerprint map[string]*model.FileRecord
	// converting — записи с конвертацией в полёте
	converting map[string]struct{}
	// totalBytes — сумма SizeBytes живых записей
	totalBytes int64

	store   *filestore.FileStore
	backend convert.Backend
	sem     *semaphore.Weighted
	cfg     Config
	logger  *slog.Logger

	obsMu     sync.RWMutex
	observers []Observer
}

// New создаёт полку поверх файлового хранилища и движка конвертации.
func New(store *filestore.FileStore, backend convert.Backend, cfg Config, logger *slog.Logger) *Shelf {
	if cfg.QuotaPolicy == "" {
		cfg.QuotaPolicy = PolicyEvictOldest
	}
	if cfg.MaxConversions <= 0 {
		cfg.MaxConversions = defaultMaxConversions
	}

	return &Shelf{
		byID:          make(map[string]*model.FileRecord),
		byFingerprint: make(map[string]*model.FileRecord),
		converting:    make(map[string]struct{}),
		store:         store,
		backend:       backend,
		sem:           semaphore.NewWeighted(cfg.MaxConversions),
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "shelf")),
	}
}

// Subscribe регистрирует наблюдателя изменений полки.
// Наблюдатель вызывается после фиксации каждого изменения, вне блокировки.
func (s *Shelf) Subscribe(obs Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, obs)
}

// notify рассылает события наблюдателям. Вызывается без блокировки полки.
func (s *Shelf) notify(events []Event) {
	if len(events) == 0 {
		return
	}
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for _, ev := range events {
		for _, obs := range s.observers {
			obs(ev)
		}
	}
}

// Add принимает внешний файл на полку: копирует байты в приватное
// хранилище, создаёт запись и добавляет её в конец живого набора.
// Исходный файл не изменяется.
//
// Квота: если после добавления суммарный размер превысил бы квоту,
// политика evict-oldest вытесняет самые старые записи пока новый файл
// не поместится; политика reject-newest отклоняет новый файл.
// Файл, который сам по себе больше квоты, отклоняется всегда
// (ErrQuotaExceeded). Повторный приём файла с тем же отпечатком
// возвращает существующую запись без дубликата.
func (s *Shelf) Add(ctx context.Context, sourcePath, displayName string) (*model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Копирование байтов — вне блокировки
	res, err := s.store.Ingest(sourcePath, displayName)
	if err != nil {
		return nil, fmt.Errorf("ошибка приёма файла: %w", err)
	}

	s.mu.Lock()

	// Дедупликация по содержимому
	if existing, ok := s.byFingerprint[res.Fingerprint]; ok {
		rec := *existing
		s.mu.Unlock()
		if err := s.store.Delete(res.StoragePath); err != nil {
			s.logger.Warn("Не удалось удалить дубликат",
				slog.String("storage_path", res.StoragePath),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Info("Повторный приём файла, возвращена существующая запись",
			slog.String("file_id", rec.ID),
			slog.String("display_name", displayName),
		)
		return &rec, nil
	}

	if res.Size > s.cfg.MaxShelfBytes {
		s.mu.Unlock()
		_ = s.store.Delete(res.StoragePath)
		return nil, fmt.Errorf("файл размером %d байт не помещается в квоту %d: %w",
			res.Size, s.cfg.MaxShelfBytes, ErrQuotaExceeded)
	}

	if s.cfg.MaxFileSize > 0 && res.Size > s.cfg.MaxFileSize {
		s.mu.Unlock()
		_ = s.store.Delete(res.StoragePath)
		return nil, fmt.Errorf("файл размером %d байт превышает лимит %d: %w",
			res.Size, s.cfg.MaxFileSize, ErrFileTooLarge)
	}

	var events []Event

	// Освобождаем место под новый файл
	for s.totalBytes+res.Size > s.cfg.MaxShelfBytes {
		if s.cfg.QuotaPolicy == PolicyRejectNewest {
			s.mu.Unlock()
			_ = s.store.Delete(res.StoragePath)
			return nil, fmt.Errorf("на полке нет места для файла размером %d байт: %w",
				res.Size, ErrQuotaExceeded)
		}

		oldest := s.records[0]
		s.dropLocked(oldest)
		if err := s.store.Delete(oldest.StoragePath); err != nil {
			s.logger.Warn("Не удалось удалить байты вытесненной записи",
				slog.String("file_id", oldest.ID),
				slog.String("error", err.Error()),
			)
		}
		evictionsTotal.WithLabelValues("quota").Inc()
		events = append(events, Event{Type: EventEvicted, Record: *oldest})

		s.logger.Info("Запись вытеснена по квоте",
			slog.String("file_id", oldest.ID),
			slog.String("display_name", oldest.DisplayName),
			slog.Int64("size", oldest.SizeBytes),
		)
	}

	rec := &model.FileRecord{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		StoragePath: res.StoragePath,
		Kind:        model.KindForName(displayName),
		SizeBytes:   res.Size,
		CreatedAt:   time.Now().UTC(),
		Fingerprint: res.Fingerprint,
	}

	s.records = append(s.records, rec)
	s.byID[rec.ID] = rec
	s.byFingerprint[rec.Fingerprint] = rec
	s.totalBytes += rec.SizeBytes
	s.updateGaugesLocked()

	out := *rec
	s.mu.Unlock()

	events = append(events, Event{Type: EventAdded, Record: out})
	s.notify(events)

	s.logger.Info("Файл принят на полку",
		slog.String("file_id", out.ID),
		slog.String("display_name", out.DisplayName),
		slog.String("kind", string(out.Kind)),
		slog.Int64("size", out.SizeBytes),
	)

	return &out, nil
}

// Remove удаляет запись и её байты с диска.
// Возвращает ErrNotFound если записи нет.
func (s *Shelf) Remove(id string) error {
	s.mu.Lock()

	rec, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	s.dropLocked(rec)
	s.updateGaugesLocked()
	out := *rec
	s.mu.Unlock()

	err := s.store.Delete(out.StoragePath)
	s.notify([]Event{{Type: EventRemoved, Record: out}})

	if err != nil {
		return fmt.Errorf("ошибка удаления байтов записи %s: %w", id, err)
	}

	s.logger.Info("Запись удалена",
		slog.String("file_id", out.ID),
		slog.String("display_name", out.DisplayName),
	)
	return nil
}

// RemoveAll очищает полку целиком. Ошибки удаления отдельных файлов
// собираются и возвращаются одной ошибкой, состояние полки при этом
// остаётся консистентным: все записи удалены.
func (s *Shelf) RemoveAll() error {
	s.mu.Lock()

	removed := s.records
	s.records = nil
	s.byID = make(map[string]*model.FileRecord)
	s.byFingerprint = make(map[string]*model.FileRecord)
	s.totalBytes = 0
	s.updateGaugesLocked()
	s.mu.Unlock()

	var errs []error
	events := make([]Event, 0, len(removed))
	for _, rec := range removed {
		if err := s.store.Delete(rec.StoragePath); err != nil {
			errs = append(errs, fmt.Errorf("запись %s: %w", rec.ID, err))
		}
		events = append(events, Event{Type: EventRemoved, Record: *rec})
	}

	s.notify(events)
	s.logger.Info("Полка очищена", slog.Int("removed", len(removed)))

	return errors.Join(errs...)
}

// List возвращает копии живых записей в порядке приёма (старые первыми).
func (s *Shelf) List() []model.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out
}

// Get возвращает копию записи по идентификатору.
func (s *Shelf) Get(id string) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// TotalSize возвращает суммарный размер файлов полки в байтах.
func (s *Shelf) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

// Count возвращает количество живых записей.
func (s *Shelf) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ConvertingIDs возвращает идентификаторы записей с конвертацией в полёте.
func (s *Shelf) ConvertingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.converting))
	for id := range s.converting {
		ids = append(ids, id)
	}
	return ids
}

// ValidateAndCleanup сверяет полку с файловой системой и применяет
// возрастное вытеснение. Записи с пропавшими байтами удаляются без
// ошибки: внешнее удаление файла — ожидаемое условие, не сбой.
// Записи старше окна хранения вытесняются вместе с байтами.
// Если размер файла на диске разошёлся с записью, размер и отпечаток
// обновляются по фактическому содержимому.
//
// Операция идемпотентна: повторный вызов без изменений файловой
// системы ничего не удаляет. Возвращает количество удалённых записей.
func (s *Shelf) ValidateAndCleanup() int {
	now := time.Now().UTC()

	s.mu.Lock()

	var events []Event
	kept := s.records[:0]

	for _, rec := range s.records {
		size, err := s.store.Size(rec.StoragePath)
		if err != nil {
			// Байты пропали: запись уходит, удалять нечего
			s.removeFromIndexLocked(rec)
			evictionsTotal.WithLabelValues("missing").Inc()
			events = append(events, Event{Type: EventEvicted, Record: *rec})
			s.logger.Warn("Байты записи пропали с диска, запись удалена",
				slog.String("file_id", rec.ID),
				slog.String("display_name", rec.DisplayName),
			)
			continue
		}

		if rec.OlderThan(now, s.cfg.Retention) {
			s.removeFromIndexLocked(rec)
			if err := s.store.Delete(rec.StoragePath); err != nil {
				s.logger.Warn("Не удалось удалить байты устаревшей записи",
					slog.String("file_id", rec.ID),
					slog.String("error", err.Error()),
				)
			}
			evictionsTotal.WithLabelValues("expired").Inc()
			events = append(events, Event{Type: EventEvicted, Record: *rec})
			s.logger.Info("Запись вытеснена по возрасту",
				slog.String("file_id", rec.ID),
				slog.String("display_name", rec.DisplayName),
				slog.Time("created_at", rec.CreatedAt),
			)
			continue
		}

		// Размер разошёлся: файл изменили снаружи, обновляем запись
		if size != rec.SizeBytes {
			if fp, err := s.store.ComputeFingerprint(rec.StoragePath); err == nil {
				delete(s.byFingerprint, rec.Fingerprint)
				s.totalBytes += size - rec.SizeBytes
				rec.SizeBytes = size
				rec.Fingerprint = fp
				s.byFingerprint[fp] = rec
				s.logger.Warn("Содержимое записи изменено извне, запись обновлена",
					slog.String("file_id", rec.ID),
					slog.Int64("size", size),
				)
			}
		}

		kept = append(kept, rec)
	}

	s.records = kept
	removed := len(events)
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.notify(events)
	return removed
}

// Convert конвертирует байты записи в целевой формат через Backend.
//
// Допустимость пары проверяется таблицей возможностей до запуска
// (ErrConversionUnsupported). На одну запись допускается одна
// конвертация в полёте (ErrConversionInProgress), общее число
// одновременных конвертаций ограничено семафором. Сама конвертация
// идёт вне блокировки: add/remove/list/validate не ждут её.
//
// При успехе запись обновляется атомарно с точки зрения читателей:
// StoragePath, Kind, SizeBytes и Fingerprint заменяются на атрибуты
// результата, ID и CreatedAt сохраняются, старые байты удаляются.
// При любой ошибке запись не изменяется вовсе.
func (s *Shelf) Convert(ctx context.Context, id, targetFormat string) (*model.FileRecord, error) {
	s.mu.Lock()

	rec, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if _, busy := s.converting[id]; busy {
		s.mu.Unlock()
		return nil, ErrConversionInProgress
	}
	if !convert.CanConvert(rec.Kind, targetFormat) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s → %s: %w", rec.Kind, targetFormat, ErrConversionUnsupported)
	}

	req := convert.Request{
		SourcePath:   s.store.FullPath(rec.StoragePath),
		SourceFormat: storageFormat(rec.StoragePath),
		SourceKind:   rec.Kind,
		TargetFormat: targetFormat,
	}
	oldPath := rec.StoragePath
	displayName := rec.DisplayName

	s.converting[id] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.converting, id)
		s.mu.Unlock()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		conversionsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("ожидание слота конвертации: %w", err)
	}
	defer s.sem.Release(1)

	res, err := s.backend.Convert(ctx, req)
	if err != nil {
		conversionsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("ошибка конвертации: %w", err)
	}

	// Переносим результат в хранилище полки под именем с новым расширением
	ingested, err := s.ingestConverted(res.OutputPath, displayName, targetFormat)
	if err != nil {
		conversionsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	s.mu.Lock()

	rec, ok = s.byID[id]
	if !ok {
		// Запись убрали, пока шла конвертация
		s.mu.Unlock()
		_ = s.store.Delete(ingested.StoragePath)
		conversionsTotal.WithLabelValues("failure").Inc()
		return nil, ErrNotFound
	}

	delete(s.byFingerprint, rec.Fingerprint)
	s.totalBytes += ingested.Size - rec.SizeBytes
	rec.StoragePath = ingested.StoragePath
	rec.Kind = convert.TargetKind(targetFormat)
	rec.SizeBytes = ingested.Size
	rec.Fingerprint = ingested.Fingerprint
	s.byFingerprint[rec.Fingerprint] = rec
	s.updateGaugesLocked()

	out := *rec
	s.mu.Unlock()

	if err := s.store.Delete(oldPath); err != nil {
		s.logger.Warn("Не удалось удалить старые байты после конвертации",
			slog.String("file_id", id),
			slog.String("storage_path", oldPath),
			slog.String("error", err.Error()),
		)
	}

	conversionsTotal.WithLabelValues("success").Inc()
	s.notify([]Event{{Type: EventConverted, Record: out}})

	s.logger.Info("Конвертация завершена",
		slog.String("file_id", out.ID),
		slog.String("target_format", targetFormat),
		slog.Int64("size", out.SizeBytes),
	)

	return &out, nil
}

// ingestConverted переносит результат конвертации из рабочей директории
// движка в хранилище полки. Исходный файл результата удаляется.
func (s *Shelf) ingestConverted(outputPath, displayName, targetFormat string) (*filestore.IngestResult, error) {
	defer os.Remove(outputPath)

	f, err := os.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия результата конвертации: %w", err)
	}
	defer f.Close()

	ext := filepath.Ext(displayName)
	name := strings.TrimSuffix(displayName, ext) + "." + targetFormat

	ingested, err := s.store.Write(f, name)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения результата конвертации: %w", err)
	}
	return ingested, nil
}

// dropLocked убирает запись из всех структур и вычитает её размер.
// Вызывается под блокировкой.
func (s *Shelf) dropLocked(rec *model.FileRecord) {
	s.removeFromIndexLocked(rec)
	for i, r := range s.records {
		if r.ID == rec.ID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
}

// removeFromIndexLocked убирает запись из индексов без изменения
// среза records. Вызывается под блокировкой.
func (s *Shelf) removeFromIndexLocked(rec *model.FileRecord) {
	delete(s.byID, rec.ID)
	delete(s.byFingerprint, rec.Fingerprint)
	s.totalBytes -= rec.SizeBytes
}

// updateGaugesLocked обновляет метрики состояния. Вызывается под блокировкой.
func (s *Shelf) updateGaugesLocked() {
	recordsGauge.Set(float64(len(s.records)))
	bytesGauge.Set(float64(s.totalBytes))
}

// storageFormat возвращает формат файла по расширению его имени
// в хранилище. В отличие от DisplayName, имя в хранилище отражает
// фактический формат байтов после конвертаций.
func storageFormat(storagePath string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(storagePath), "."))
}
