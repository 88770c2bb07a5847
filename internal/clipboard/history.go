// Пакет clipboard — история текстовых фрагментов буфера обмена.
// Хранится только в памяти: ограничена по количеству записей и TTL,
// дедупликация по SHA-256 содержимого.
package clipboard

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entry — один фрагмент истории буфера обмена.
type Entry struct {
	// ID — SHA-256 содержимого, он же ключ дедупликации
	ID string `json:"id"`
	// Content — текст фрагмента
	Content string `json:"content"`
	// CapturedAt — время последнего попадания фрагмента в историю.
	// Повторная запись того же текста обновляет это поле.
	CapturedAt time.Time `json:"captured_at"`
}

var (
	recordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_clipboard_recorded_total",
		Help: "Количество фрагментов, записанных в историю буфера обмена",
	})
	dedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_clipboard_deduped_total",
		Help: "Количество повторных фрагментов, схлопнутых дедупликацией",
	})
)

// History — ограниченная история буфера обмена поверх LRU с TTL.
// Вытеснение по количеству и возрасту выполняет сама LRU.
type History struct {
	mu     sync.Mutex
	lru    *expirable.LRU[string, Entry]
	logger *slog.Logger
}

// New создаёт историю буфера обмена.
// size — максимум записей, ttl — срок жизни записи.
func New(size int, ttl time.Duration, logger *slog.Logger) *History {
	return &History{
		lru:    expirable.NewLRU[string, Entry](size, nil, ttl),
		logger: logger.With(slog.String("component", "clipboard")),
	}
}

// Record добавляет текстовый фрагмент в историю.
// Повторный фрагмент (тот же SHA-256) не дублируется: существующая
// запись поднимается наверх с обновлённым временем. Пустой текст
// игнорируется. Возвращает запись истории.
func (h *History) Record(content string) *Entry {
	if content == "" {
		return nil
	}

	sum := sha256.Sum256([]byte(content))
	id := hex.EncodeToString(sum[:])

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.lru.Get(id); ok {
		dedupedTotal.Inc()
	}

	entry := Entry{
		ID:         id,
		Content:    content,
		CapturedAt: time.Now().UTC(),
	}
	h.lru.Add(id, entry)
	recordedTotal.Inc()

	h.logger.Debug("Фрагмент записан в историю буфера обмена",
		slog.String("id", id[:8]),
		slog.Int("length", len(content)),
	)

	return &entry
}

// List возвращает актуальные записи истории, новые первыми.
func (h *History) List() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.lru.Values()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CapturedAt.After(entries[j].CapturedAt)
	})
	return entries
}

// Get возвращает запись по идентификатору.
func (h *History) Get(id string) (*Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.lru.Get(id)
	if !ok {
		return nil, false
	}
	return &entry, true
}

// Clear очищает историю целиком.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lru.Purge()
	h.logger.Info("История буфера обмена очищена")
}

// Len возвращает текущее количество записей.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.lru.Len()
}
