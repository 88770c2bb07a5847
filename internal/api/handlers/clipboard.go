// clipboard.go — HTTP handlers истории буфера обмена.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/dropshelf/dropshelf/internal/api/errors"
	"github.com/dropshelf/dropshelf/internal/clipboard"
	"github.com/dropshelf/dropshelf/internal/service"
)

// ClipboardHandler — обработчик endpoints истории буфера обмена.
type ClipboardHandler struct {
	history *clipboard.History
	opener  *service.Opener
}

// NewClipboardHandler создаёт обработчик истории буфера обмена.
func NewClipboardHandler(history *clipboard.History, opener *service.Opener) *ClipboardHandler {
	return &ClipboardHandler{
		history: history,
		opener:  opener,
	}
}

// recordClipboardRequest — тело POST /api/v1/clipboard.
type recordClipboardRequest struct {
	Content string `json:"content"`
}

// RecordEntry обрабатывает POST /api/v1/clipboard.
// Клиент присылает очередной текстовый фрагмент, пойманный его
// наблюдателем буфера обмена.
func (h *ClipboardHandler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	var req recordClipboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное тело запроса: %s", err.Error()))
		return
	}
	if req.Content == "" {
		apierrors.ValidationError(w, "Поле content обязательно")
		return
	}

	entry := h.history.Record(req.Content)
	writeJSON(w, http.StatusCreated, entry)
}

// ListEntries обрабатывает GET /api/v1/clipboard.
// Возвращает актуальные записи истории, новые первыми.
func (h *ClipboardHandler) ListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := h.history.List()
	if entries == nil {
		entries = []clipboard.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ClearHistory обрабатывает DELETE /api/v1/clipboard.
func (h *ClipboardHandler) ClearHistory(w http.ResponseWriter, _ *http.Request) {
	h.history.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// CopyEntry обрабатывает POST /api/v1/clipboard/{entryId}/copy.
// Кладёт содержимое записи обратно в системный буфер обмена.
func (h *ClipboardHandler) CopyEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryId")

	entry, ok := h.history.Get(id)
	if !ok {
		apierrors.NotFound(w, "Запись истории не найдена")
		return
	}

	if err := h.opener.CopyText(r.Context(), entry.Content); err != nil {
		apierrors.IOError(w, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
