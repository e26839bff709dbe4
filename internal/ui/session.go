package ui

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
)

// ErrSessionNotFound возвращается, если сессии с таким идентификатором нет.
var ErrSessionNotFound = errors.New("ui session not found")

// Session — пара панелей одного заказа на общей шине.
type Session struct {
	ID      string
	OrderID string
	Picker  *PickerPanel
	Lines   *LinesPanel
	bus     *signal.Bus

	// lastUsed — unix-время последнего обращения через реестр, в наносекундах.
	lastUsed atomic.Int64
}

// NewSession создаёт панели заказа. Если deps.Bus не задан, у сессии своя шина.
func NewSession(orderID string, deps Dependencies) *Session {
	if deps.Bus == nil {
		deps.Bus = signal.NewBus(deps.logger("bus"))
	}
	return &Session{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Picker:  NewPickerPanel(orderID, deps),
		Lines:   NewLinesPanel(orderID, deps),
		bus:     deps.Bus,
	}
}

// Load загружает обе панели параллельно. Ошибка одной панели не прерывает другую.
func (s *Session) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.Picker.Load(ctx) })
	g.Go(func() error { return s.Lines.Load(ctx) })
	return g.Wait()
}

// Bus возвращает шину сессии.
func (s *Session) Bus() *signal.Bus {
	return s.bus
}

// Close отписывает обе панели.
func (s *Session) Close() {
	s.Picker.Close()
	s.Lines.Close()
}

// SessionRegistry хранит открытые сессии по идентификатору.
// С WithIdleTTL сессии, к которым долго не обращались, закрываются в EvictIdle.
type SessionRegistry struct {
	deps    Dependencies
	idleTTL time.Duration
	now     func() time.Time
	logger  *log.Entry

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption настраивает SessionRegistry.
type RegistryOption func(*SessionRegistry)

// WithIdleTTL задаёт срок простоя сессии; 0 выключает вытеснение.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *SessionRegistry) {
		if ttl >= 0 {
			r.idleTTL = ttl
		}
	}
}

// WithRegistryClock подменяет часы реестра.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewSessionRegistry создаёт реестр. deps.Bus игнорируется: у каждой сессии своя шина.
func NewSessionRegistry(deps Dependencies, opts ...RegistryOption) *SessionRegistry {
	deps.Bus = nil
	r := &SessionRegistry{
		deps:     deps,
		now:      time.Now,
		logger:   deps.logger("registry"),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create открывает и загружает сессию заказа. Сессия регистрируется, даже если
// загрузка панели закончилась ошибкой: состояние Error видно в View.
func (r *SessionRegistry) Create(ctx context.Context, orderID string) (*Session, error) {
	session := NewSession(orderID, r.deps)
	loadErr := session.Load(ctx)
	r.touch(session)

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return session, loadErr
}

// Get возвращает сессию по идентификатору.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	r.touch(session)
	return session, nil
}

func (r *SessionRegistry) touch(session *Session) {
	session.lastUsed.Store(r.now().UnixNano())
}

// EvictIdle закрывает сессии, простаивающие дольше срока, и возвращает их число.
func (r *SessionRegistry) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}
	deadline := r.now().Add(-r.idleTTL).UnixNano()

	r.mu.Lock()
	var idle []*Session
	for id, session := range r.sessions {
		if session.lastUsed.Load() < deadline {
			idle = append(idle, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range idle {
		session.Close()
	}
	if len(idle) > 0 {
		r.logger.WithField("evicted", len(idle)).Info("idle ui sessions closed")
	}
	return len(idle)
}

// Run вызывает EvictIdle с шагом interval до отмены ctx.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if r.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

// Remove закрывает и удаляет сессию.
func (r *SessionRegistry) Remove(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	return nil
}

// Len возвращает число открытых сессий.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close закрывает все сессии.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Broadcast пересылает сигнал на шины сессий того же заказа.
// Подходит как signal.Handler для общей шины процесса.
func (r *SessionRegistry) Broadcast(msg signal.Message) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.OrderID == msg.OrderID {
			targets = append(targets, session)
		}
	}
	r.mu.RUnlock()

	for _, session := range targets {
		session.bus.Publish(msg)
	}
}
