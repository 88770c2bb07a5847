// files.go — HTTP handlers файловых операций полки.
// Add, List, Get, Delete, DeleteAll, Convert и сквозные действия ОС
// (open, reveal, copy-path, export).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/dropshelf/dropshelf/internal/api/errors"
	"github.com/dropshelf/dropshelf/internal/domain/model"
	"github.com/dropshelf/dropshelf/internal/service"
	"github.com/dropshelf/dropshelf/internal/shelf"
	"github.com/dropshelf/dropshelf/internal/storage/filestore"
	"github.com/dropshelf/dropshelf/internal/storage/scratch"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	shelf   *shelf.Shelf
	store   *filestore.FileStore
	scratch *scratch.Area
	opener  *service.Opener
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(sh *shelf.Shelf, store *filestore.FileStore, area *scratch.Area, opener *service.Opener) *FilesHandler {
	return &FilesHandler{
		shelf:   sh,
		store:   store,
		scratch: area,
		opener:  opener,
	}
}

// addFileRequest — тело POST /api/v1/files.
type addFileRequest struct {
	// SourcePath — абсолютный путь к файлу, который клиент кладёт на полку
	SourcePath string `json:"source_path"`
	// DisplayName — отображаемое имя, по умолчанию базовое имя источника
	DisplayName string `json:"display_name,omitempty"`
}

// convertRequest — тело POST /api/v1/files/{fileId}/convert.
type convertRequest struct {
	TargetFormat string `json:"target_format"`
}

// listResponse — ответ GET /api/v1/files.
type listResponse struct {
	Files         []model.FileRecord `json:"files"`
	TotalBytes    int64              `json:"total_bytes"`
	ConvertingIDs []string           `json:"converting_ids"`
}

// AddFile обрабатывает POST /api/v1/files.
// Копирует указанный файл на полку, исходный файл не изменяется.
func (h *FilesHandler) AddFile(w http.ResponseWriter, r *http.Request) {
	var req addFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное тело запроса: %s", err.Error()))
		return
	}
	if req.SourcePath == "" {
		apierrors.ValidationError(w, "Поле source_path обязательно")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = baseName(req.SourcePath)
	}

	rec, err := h.shelf.Add(r.Context(), req.SourcePath, displayName)
	if err != nil {
		writeShelfError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ListFiles обрабатывает GET /api/v1/files.
// Возвращает живые записи в порядке приёма, суммарный размер
// и идентификаторы записей с конвертацией в полёте.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, _ *http.Request) {
	resp := listResponse{
		Files:         h.shelf.List(),
		TotalBytes:    h.shelf.TotalSize(),
		ConvertingIDs: h.shelf.ConvertingIDs(),
	}
	if resp.ConvertingIDs == nil {
		resp.ConvertingIDs = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetFile обрабатывает GET /api/v1/files/{fileId}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteFile обрабатывает DELETE /api/v1/files/{fileId}.
// Удаляет запись и её байты.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileId")

	if err := h.shelf.Remove(id); err != nil {
		writeShelfError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll обрабатывает DELETE /api/v1/files.
// Очищает полку целиком.
func (h *FilesHandler) DeleteAll(w http.ResponseWriter, _ *http.Request) {
	if err := h.shelf.RemoveAll(); err != nil {
		apierrors.IOError(w, fmt.Sprintf("Часть файлов не удалена: %s", err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConvertFile обрабатывает POST /api/v1/files/{fileId}/convert.
// Блокирует вызывающего до завершения конвертации; полка при этом
// продолжает обслуживать остальные операции.
func (h *FilesHandler) ConvertFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileId")

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное тело запроса: %s", err.Error()))
		return
	}
	if req.TargetFormat == "" {
		apierrors.ValidationError(w, "Поле target_format обязательно")
		return
	}

	rec, err := h.shelf.Convert(r.Context(), id, req.TargetFormat)
	if err != nil {
		writeShelfError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// OpenFile обрабатывает POST /api/v1/files/{fileId}/open.
// Открывает файл приложением по умолчанию.
func (h *FilesHandler) OpenFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.opener.Open(r.Context(), h.store.FullPath(rec.StoragePath)); err != nil {
		apierrors.IOError(w, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevealFile обрабатывает POST /api/v1/files/{fileId}/reveal.
// Показывает файл в файловом менеджере.
func (h *FilesHandler) RevealFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.opener.Reveal(r.Context(), h.store.FullPath(rec.StoragePath)); err != nil {
		apierrors.IOError(w, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CopyPath обрабатывает POST /api/v1/files/{fileId}/copy-path.
// Кладёт абсолютный путь файла в системный буфер обмена.
func (h *FilesHandler) CopyPath(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.opener.CopyText(r.Context(), h.store.FullPath(rec.StoragePath)); err != nil {
		apierrors.IOError(w, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportFile обрабатывает POST /api/v1/files/{fileId}/export.
// Кладёт копию файла под отображаемым именем в область экспорта
// и возвращает её путь. Копию клиент отдаёт наружу (drag-out),
// её жизнью управляет периодическая очистка.
func (h *FilesHandler) ExportFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordFromRequest(w, r)
	if !ok {
		return
	}

	path, err := h.scratch.Place(h.store.FullPath(rec.StoragePath), rec.DisplayName)
	if err != nil {
		apierrors.IOError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// recordFromRequest извлекает запись по fileId из URL.
// При отсутствии записи пишет 404 и возвращает ok=false.
func (h *FilesHandler) recordFromRequest(w http.ResponseWriter, r *http.Request) (*model.FileRecord, bool) {
	id := chi.URLParam(r, "fileId")

	rec, err := h.shelf.Get(id)
	if err != nil {
		writeShelfError(w, err)
		return nil, false
	}
	return rec, true
}

// writeShelfError транслирует ошибки полки в HTTP-ответы.
func writeShelfError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shelf.ErrNotFound):
		apierrors.NotFound(w, "Запись не найдена")
	case errors.Is(err, shelf.ErrQuotaExceeded):
		apierrors.QuotaExceeded(w, err.Error())
	case errors.Is(err, shelf.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, shelf.ErrConversionUnsupported):
		apierrors.ConversionUnsupported(w, err.Error())
	case errors.Is(err, shelf.ErrConversionInProgress):
		apierrors.ConversionInProgress(w, "Для записи уже выполняется конвертация")
	default:
		apierrors.IOError(w, err.Error())
	}
}

// writeJSON пишет JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// baseName возвращает последний сегмент пути.
func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
