// Пакет errors — конструкторы стандартных ошибок API DropShelf.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeQuotaExceeded         = "QUOTA_EXCEEDED"
	CodeFileTooLarge          = "FILE_TOO_LARGE"
	CodeConversionUnsupported = "CONVERSION_UNSUPPORTED"
	CodeConversionInProgress  = "CONVERSION_IN_PROGRESS"
	CodeIOError               = "IO_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 запись не найдена.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// QuotaExceeded — 507 файл не помещается в квоту полки.
func QuotaExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInsufficientStorage, CodeQuotaExceeded, message)
}

// FileTooLarge — 413 файл превышает лимит на один файл.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// ConversionUnsupported — 422 пара категория/формат вне таблицы возможностей.
func ConversionUnsupported(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeConversionUnsupported, message)
}

// ConversionInProgress — 409 для записи уже идёт конвертация.
func ConversionInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConversionInProgress, message)
}

// IOError — 500 ошибка ввода-вывода.
func IOError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeIOError, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
