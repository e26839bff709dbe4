package ordering

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// ConfirmationAttempts возвращает журнал попыток подтверждения заказа.
func (s *Service) ConfirmationAttempts(ctx context.Context, orderID string) ([]domain.ConfirmationAttempt, error) {
	if err := access.Require(ctx, s.deps.Permissions, domain.ActionRead, domain.RecordKindOrder); err != nil {
		return nil, err
	}
	if s.deps.Audit == nil {
		return []domain.ConfirmationAttempt{}, nil
	}
	attempts, err := s.deps.Audit.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list confirmation attempts: %w", err)
	}
	return attempts, nil
}

// Timeline возвращает события заказа.
func (s *Service) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if err := access.Require(ctx, s.deps.Permissions, domain.ActionRead, domain.RecordKindOrder); err != nil {
		return nil, err
	}
	if s.deps.Timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	events, err := s.deps.Timeline.List(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return events, nil
}
