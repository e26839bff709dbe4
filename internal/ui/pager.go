// Package ui синхронизирует две панели заказа: подбор записей каталога и список позиций.
// Рендеринга нет: панели отдают неизменяемые снимки View.
package ui

// DefaultPageSize — размер окна по умолчанию.
const DefaultPageSize = 30

// Pager показывает локально закэшированный полный набор окнами фиксированного размера.
// Не потокобезопасен: панели защищают его своим mutex.
type Pager[T any] struct {
	items  []T
	window int
	shown  int
}

// NewPager создаёт пустой pager. window <= 0 — DefaultPageSize.
func NewPager[T any](window int) *Pager[T] {
	if window <= 0 {
		window = DefaultPageSize
	}
	return &Pager[T]{window: window}
}

// Reset заменяет кэш и показывает первое окно.
func (p *Pager[T]) Reset(items []T) {
	p.items = append([]T(nil), items...)
	p.shown = min(p.window, len(p.items))
}

// Visible возвращает копию показанных элементов.
func (p *Pager[T]) Visible() []T {
	visible := make([]T, p.shown)
	copy(visible, p.items[:p.shown])
	return visible
}

// All возвращает копию всего кэша.
func (p *Pager[T]) All() []T {
	return append([]T(nil), p.items...)
}

// HasMore сообщает, остались ли непоказанные элементы.
func (p *Pager[T]) HasMore() bool {
	return p.shown < len(p.items)
}

// LoadMore добавляет следующее окно. false — кэш исчерпан.
func (p *Pager[T]) LoadMore() bool {
	if !p.HasMore() {
		return false
	}
	p.shown = min(p.shown+p.window, len(p.items))
	return true
}

// Len — размер кэша.
func (p *Pager[T]) Len() int {
	return len(p.items)
}

// Window — размер окна.
func (p *Pager[T]) Window() int {
	return p.window
}
