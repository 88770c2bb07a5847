package shelf

import "errors"

// Сентинельные ошибки полки. Всё остальное, что возвращает полка,
// считается ошибкой ввода-вывода и оборачивает исходную причину.
var (
	// ErrNotFound — операция ссылается на запись, которой больше нет
	ErrNotFound = errors.New("запись не найдена")

	// ErrQuotaExceeded — файл не помещается даже после вытеснения
	// всех остальных записей, либо политика запрещает вытеснение
	ErrQuotaExceeded = errors.New("превышена квота полки")

	// ErrConversionUnsupported — пара (категория, целевой формат)
	// отсутствует в таблице возможностей
	ErrConversionUnsupported = errors.New("конвертация не поддерживается")

	// ErrConversionInProgress — для записи уже идёт конвертация
	ErrConversionInProgress = errors.New("конвертация уже выполняется")

	// ErrFileTooLarge — файл больше лимита на один файл
	ErrFileTooLarge = errors.New("файл превышает максимальный размер")
)
