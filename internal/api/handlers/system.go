// system.go — обработчик GET /api/v1/info (информация о демоне).
// Публичный endpoint (без аутентификации) для GUI-клиента и мониторинга.
package handlers

import (
	"net/http"

	"github.com/dropshelf/dropshelf/internal/config"
	"github.com/dropshelf/dropshelf/internal/shelf"
)

// DiskUsageFunc возвращает total, used, available в байтах для директории.
// Платформозависимая реализация передаётся из main.
type DiskUsageFunc func(path string) (total, used, available int64, err error)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg       *config.Config
	shelf     *shelf.Shelf
	diskUsage DiskUsageFunc
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage может быть nil, тогда сведения о диске не включаются.
func NewSystemHandler(cfg *config.Config, sh *shelf.Shelf, diskUsage DiskUsageFunc) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		shelf:     sh,
		diskUsage: diskUsage,
	}
}

// GetInfo обрабатывает GET /api/v1/info.
// Возвращает версию, состояние полки и параметры квоты.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"service":          "dropshelf",
		"version":          config.Version,
		"records":          h.shelf.Count(),
		"total_bytes":      h.shelf.TotalSize(),
		"max_shelf_bytes":  h.cfg.MaxShelfBytes,
		"retention_window": h.cfg.RetentionWindow.String(),
		"quota_policy":     h.cfg.QuotaPolicy,
	}

	if h.diskUsage != nil {
		if total, used, available, err := h.diskUsage(h.cfg.DataDir); err == nil {
			resp["disk"] = map[string]int64{
				"total_bytes":     total,
				"used_bytes":      used,
				"available_bytes": available,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
