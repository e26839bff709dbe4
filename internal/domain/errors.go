package domain

import "errors"

var (
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStandardPriceBookNotFound — в хранилище нет стандартного прайс-листа.
	ErrStandardPriceBookNotFound = errors.New("standard price book not found")
	// ErrCatalogEntryNotFound — запись каталога не найдена или неактивна.
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")
	// ErrPermissionDenied — у вызывающего нет нужного права.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrPriceBookMismatch — хранилище отклоняет позицию, если прайс-лист заказа не совпадает с прайс-листом записи.
	ErrPriceBookMismatch = errors.New("order price book does not match catalog entry price book")
	// ErrOrderActivated — заказ уже активирован и заморожен.
	ErrOrderActivated = errors.New("order is already activated")
	// ErrEmptySelection — не выбрано ни одной записи каталога.
	ErrEmptySelection = errors.New("selection is empty")
	// ErrConfirmationRejected — внешняя система ответила статусом, отличным от 200.
	ErrConfirmationRejected = errors.New("confirmation rejected by external system")
	// ErrConfirmationTransport — ошибка транспорта при вызове внешней системы.
	ErrConfirmationTransport = errors.New("confirmation transport error")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsPermissionDenied проверяет, является ли ошибка отказом в доступе.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound объединяет ошибки отсутствующих записей.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrStandardPriceBookNotFound) ||
		errors.Is(err, ErrCatalogEntryNotFound)
}
