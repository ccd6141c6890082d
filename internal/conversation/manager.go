package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

var ErrSessionNotFound = errors.New("conversation: session not found")

// Factory builds the orchestrator for a newly opened session.
type Factory func(sessionID string, locale language.Locale) *Orchestrator

// SessionObserver is told how many sessions are open after each change.
type SessionObserver interface {
	ObserveSessions(active int)
}

// TurnResult is the reply to one user message plus the resulting state.
type TurnResult struct {
	SessionID string          `json:"sessionId"`
	Reply     string          `json:"reply"`
	Intent    Intent          `json:"intent"`
	Entities  Entities        `json:"entities"`
	Language  language.Locale `json:"language"`
}

type session struct {
	orch     *Orchestrator
	lastSeen time.Time
}

// Manager maps session ids to orchestrators and evicts idle sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	newSession Factory
	logger     *logging.Logger
	observer   SessionObserver
	idle       time.Duration
	now        func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout evicts sessions untouched for d. Zero disables eviction.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idle = d
	}
}

func WithSessionObserver(obs SessionObserver) ManagerOption {
	return func(m *Manager) {
		m.observer = obs
	}
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager starts a session manager. Call Close to stop the janitor.
func NewManager(factory Factory, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if factory == nil {
		panic("conversation: session factory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		sessions:   make(map[string]*session),
		newSession: factory,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idle > 0 {
		go m.janitor()
	} else {
		close(m.done)
	}
	return m
}

// Open creates a session and returns its initial state.
func (m *Manager) Open(locale language.Locale) (State, error) {
	select {
	case <-m.stop:
		return State{}, ErrSessionClosed
	default:
	}

	id := uuid.New().String()
	orch := m.newSession(id, locale)
	if orch == nil {
		return State{}, errors.New("conversation: factory returned nil orchestrator")
	}

	m.mu.Lock()
	m.sessions[orch.SessionID()] = &session{orch: orch, lastSeen: m.now()}
	active := len(m.sessions)
	m.mu.Unlock()

	m.observe(active)
	m.logger.Info("session opened", "session_id", orch.SessionID())
	return orch.State(), nil
}

// Get returns the orchestrator for id and marks the session as active.
func (m *Manager) Get(id string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = m.now()
	return s.orch, nil
}

// Turn ingests text into the session and returns the assistant reply.
func (m *Manager) Turn(ctx context.Context, id, text string) (TurnResult, error) {
	orch, err := m.Get(id)
	if err != nil {
		return TurnResult{}, err
	}
	answer, state, err := orch.Turn(ctx, text)
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		SessionID: state.SessionID,
		Reply:     answer,
		Intent:    state.CurrentIntent,
		Entities:  state.Entities,
		Language:  state.Language,
	}, nil
}

// State returns a snapshot of the session.
func (m *Manager) State(id string) (State, error) {
	orch, err := m.Get(id)
	if err != nil {
		return State{}, err
	}
	return orch.State(), nil
}

// CloseSession discards the session.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.orch.Close()
	m.observe(active)
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// Evict closes sessions idle since before now minus the idle timeout and
// returns how many were removed.
func (m *Manager) Evict(now time.Time) int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idle)

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.orch.Close()
	}
	if len(expired) > 0 {
		m.observe(active)
		m.logger.Info("idle sessions evicted", "count", len(expired))
	}
	return len(expired)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the janitor and closes every session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done

		m.mu.Lock()
		sessions := m.sessions
		m.sessions = make(map[string]*session)
		m.mu.Unlock()

		for _, s := range sessions {
			s.orch.Close()
		}
		m.observe(0)
	})
}

func (m *Manager) janitor() {
	defer close(m.done)
	interval := m.idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Evict(m.now())
		}
	}
}

func (m *Manager) observe(active int) {
	if m.observer != nil {
		m.observer.ObserveSessions(active)
	}
}
