// Package signal — внутрипроцессная шина сигналов между панелями одного заказа.
package signal

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Message — сигнал для панелей. Fetch просит перечитать позиции, Deactivate — заблокировать ввод.
type Message struct {
	OrderID    string `json:"orderId,omitempty"`
	Fetch      bool   `json:"fetch,omitempty"`
	Deactivate bool   `json:"deactivate,omitempty"`
}

// FetchMessage сообщает, что позиции заказа изменились.
func FetchMessage(orderID string) Message {
	return Message{OrderID: orderID, Fetch: true}
}

// DeactivateMessage сообщает, что заказ активирован.
func DeactivateMessage(orderID string) Message {
	return Message{OrderID: orderID, Deactivate: true}
}

// Handler получает сообщения шины.
type Handler func(Message)

// Bus рассылает сообщения всем текущим подписчикам синхронно, без буфера и хранения.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler
	logger   *log.Entry
}

// NewBus создаёт шину. logger может быть nil.
func NewBus(logger *log.Entry) *Bus {
	if logger == nil {
		logger = log.New().WithField("component", "signal-bus")
	}
	return &Bus{
		handlers: make(map[uint64]Handler),
		logger:   logger,
	}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки. Повторная отписка безопасна.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish доставляет сообщение всем подписчикам. Паника обработчика логируется и не мешает остальным.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, msg)
	}
}

// Subscribers возвращает число подписчиков.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *Bus) deliver(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(log.Fields{
				"order_id":   msg.OrderID,
				"fetch":      msg.Fetch,
				"deactivate": msg.Deactivate,
				"panic":      r,
			}).Error("signal handler panicked")
		}
	}()
	h(msg)
}
