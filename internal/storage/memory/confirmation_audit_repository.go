package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// confirmationAuditInMemory хранит попытки подтверждения вне транзакций хранилища заказов.
type confirmationAuditInMemory struct {
	mu       sync.RWMutex
	attempts map[string][]domain.ConfirmationAttempt
}

// NewConfirmationAuditRepository создаёт in-memory журнал попыток подтверждения.
func NewConfirmationAuditRepository() domain.ConfirmationAuditRepository {
	return &confirmationAuditInMemory{attempts: make(map[string][]domain.ConfirmationAttempt)}
}

func (r *confirmationAuditInMemory) Record(_ context.Context, attempt domain.ConfirmationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[attempt.OrderID] = append(r.attempts[attempt.OrderID], attempt)
	return nil
}

func (r *confirmationAuditInMemory) ListByOrder(_ context.Context, orderID string) ([]domain.ConfirmationAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempts := r.attempts[orderID]
	result := make([]domain.ConfirmationAttempt, len(attempts))
	copy(result, attempts)
	return result, nil
}

var _ domain.ConfirmationAuditRepository = (*confirmationAuditInMemory)(nil)
