// maintenance.go — обработчик ручного запуска сверки.
package handlers

import (
	"net/http"

	"github.com/dropshelf/dropshelf/internal/service"
)

// MaintenanceHandler — обработчик сервисных endpoints.
type MaintenanceHandler struct {
	sweeper *service.Sweeper
}

// NewMaintenanceHandler создаёт обработчик сервисных endpoints.
func NewMaintenanceHandler(sweeper *service.Sweeper) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper}
}

// Sweep обрабатывает POST /api/v1/maintenance/sweep.
// Запускает внеочередной цикл сверки; клиент вызывает его при выходе
// приложения на передний план. Параллельный запуск с расписанием
// безопасен: циклы взаимно исключены внутри сервиса.
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, _ *http.Request) {
	removed := h.sweeper.RunOnce()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"removed": removed,
	})
}
