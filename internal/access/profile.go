// Package access реализует ambient-контекст авторизации: профиль прав едет в context.Context
// и опрашивается перед каждым изменяющим шагом.
package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	// ProfileFull — все права на все типы записей.
	ProfileFull = "full"
	// ProfileReadOnly — только чтение.
	ProfileReadOnly = "readonly"
)

// Profile — именованный набор прав.
type Profile struct {
	Name   string
	grants map[domain.RecordKind]map[domain.Action]struct{}
}

// NewProfile создаёт профиль из карты "тип записи -> действия".
func NewProfile(name string, grants map[domain.RecordKind][]domain.Action) Profile {
	p := Profile{Name: name, grants: make(map[domain.RecordKind]map[domain.Action]struct{}, len(grants))}
	for kind, actions := range grants {
		set := make(map[domain.Action]struct{}, len(actions))
		for _, action := range actions {
			set[action] = struct{}{}
		}
		p.grants[kind] = set
	}
	return p
}

// Allows сообщает, выдано ли право.
func (p Profile) Allows(kind domain.RecordKind, action domain.Action) bool {
	actions, ok := p.grants[kind]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Grants возвращает права в стабильном порядке (для логов и API).
func (p Profile) Grants() map[domain.RecordKind][]domain.Action {
	out := make(map[domain.RecordKind][]domain.Action, len(p.grants))
	for kind, set := range p.grants {
		actions := make([]domain.Action, 0, len(set))
		for action := range set {
			actions = append(actions, action)
		}
		sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
		out[kind] = actions
	}
	return out
}

var allKinds = []domain.RecordKind{
	domain.RecordKindOrder,
	domain.RecordKindOrderLine,
	domain.RecordKindCatalogEntry,
	domain.RecordKindPriceBook,
}

var allActions = []domain.Action{domain.ActionRead, domain.ActionCreate, domain.ActionUpdate}

func validKind(kind domain.RecordKind) bool {
	for _, k := range allKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func validAction(action domain.Action) bool {
	for _, a := range allActions {
		if a == action {
			return true
		}
	}
	return false
}

// FullProfile выдаёт все права.
func FullProfile() Profile {
	grants := make(map[domain.RecordKind][]domain.Action, len(allKinds))
	for _, kind := range allKinds {
		grants[kind] = allActions
	}
	return NewProfile(ProfileFull, grants)
}

// ReadOnlyProfile выдаёт только чтение.
func ReadOnlyProfile() Profile {
	grants := make(map[domain.RecordKind][]domain.Action, len(allKinds))
	for _, kind := range allKinds {
		grants[kind] = []domain.Action{domain.ActionRead}
	}
	return NewProfile(ProfileReadOnly, grants)
}

type profileKey struct{}

// WithProfile кладёт профиль в контекст запроса.
func WithProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// FromContext достаёт профиль из контекста.
func FromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(Profile)
	return p, ok
}

// Checker реализует domain.PermissionChecker поверх профиля из контекста.
// Без профиля в контексте действует fallback.
type Checker struct {
	fallback Profile
}

// NewChecker создаёт проверку прав с профилем по умолчанию.
func NewChecker(fallback Profile) *Checker {
	return &Checker{fallback: fallback}
}

// Can отвечает, разрешено ли действие.
func (c *Checker) Can(ctx context.Context, kind domain.RecordKind, action domain.Action) bool {
	if p, ok := FromContext(ctx); ok {
		return p.Allows(kind, action)
	}
	return c.fallback.Allows(kind, action)
}

// Require возвращает ErrPermissionDenied, если хотя бы одно из прав не выдано.
func Require(ctx context.Context, checker domain.PermissionChecker, action domain.Action, kinds ...domain.RecordKind) error {
	for _, kind := range kinds {
		if !checker.Can(ctx, kind, action) {
			return fmt.Errorf("%w: %s %s", domain.ErrPermissionDenied, action, kind)
		}
	}
	return nil
}

var _ domain.PermissionChecker = (*Checker)(nil)
