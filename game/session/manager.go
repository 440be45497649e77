package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/service"
	"github.com/wricardo/battlecity/logger"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
	ErrRunnerActive         = errors.New("session runner already active")
	ErrRunnerInactive       = errors.New("session runner not active")
)

// Manager handles game session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	runners     map[string]*Runner
	factory     service.EngineFactory
	persistence SessionPersistence
	log         logrus.FieldLogger
	mu          sync.RWMutex
}

// NewManager creates a new session manager whose sessions get their
// engines from factory
func NewManager(factory service.EngineFactory) *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		runners:  make(map[string]*Runner),
		factory:  factory,
		log:      logger.Log.WithField("component", "sessions"),
	}
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(factory service.EngineFactory, persistence SessionPersistence) *Manager {
	m := NewManager(factory)
	m.persistence = persistence
	return m
}

// Create creates a new session with the given ID playing levelName
func (m *Manager) Create(id, levelName string) (*service.Session, error) {
	if strings.ContainsAny(id, `/\ `) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateSessionID()
	}

	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	eng, err := m.factory(levelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	session := service.NewSession(id, levelName, eng)
	m.sessions[strings.ToLower(id)] = session

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			m.log.WithField("session", id).WithError(err).Warn("failed to persist session")
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && m.persistence.Exists(id) {
		session, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// Another caller may have restored it first
		if existing, ok := m.sessions[strings.ToLower(id)]; ok {
			return existing, nil
		}
		m.sessions[strings.ToLower(id)] = session
		return session, nil
	}

	return nil, ErrSessionNotFound
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, levelName string) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, levelName)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete stops the session's runner and removes the session from memory
// and persistence
func (m *Manager) Delete(id string) error {
	lowerID := strings.ToLower(id)

	m.mu.Lock()
	runner := m.runners[lowerID]
	delete(m.runners, lowerID)
	_, inMemory := m.sessions[lowerID]
	delete(m.sessions, lowerID)
	m.mu.Unlock()

	if runner != nil {
		runner.Stop()
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	lowerID := strings.ToLower(id)

	m.mu.Lock()
	runner := m.runners[lowerID]
	delete(m.runners, lowerID)
	_, exists := m.sessions[lowerID]
	delete(m.sessions, lowerID)
	m.mu.Unlock()

	if runner != nil {
		runner.Stop()
	}
	if !exists {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	session.Touch()

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			m.log.WithField("session", id).WithError(err).Warn("failed to persist session after access update")
		}
	}

	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(session)
}

// StartRunner starts stepping the session in real time at rate ticks per
// second. onTick, when set, sees every tick's events and view.
func (m *Manager) StartRunner(id string, rate int, onTick service.TickFunc) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	if _, running := m.runners[lowerID]; running {
		return ErrRunnerActive
	}

	runner := NewRunner(session, rate, onTick, m.log)
	runner.Start(context.Background())
	m.runners[lowerID] = runner
	m.log.WithFields(logrus.Fields{"session": session.ID, "rate": rate}).Info("runner started")
	return nil
}

// StopRunner stops the session's runner and waits for it to exit
func (m *Manager) StopRunner(id string) error {
	lowerID := strings.ToLower(id)

	m.mu.Lock()
	runner, running := m.runners[lowerID]
	delete(m.runners, lowerID)
	m.mu.Unlock()

	if !running {
		return ErrRunnerInactive
	}
	runner.Stop()
	m.log.WithField("session", id).Info("runner stopped")

	if err := m.Save(id); err != nil {
		m.log.WithField("session", id).WithError(err).Warn("failed to persist session")
	}
	return nil
}

// StopAll stops every runner, used on shutdown
func (m *Manager) StopAll() {
	m.mu.Lock()
	runners := m.runners
	m.runners = make(map[string]*Runner)
	m.mu.Unlock()

	for _, runner := range runners {
		runner.Stop()
	}
}

// CleanupExpiredSessions removes idle sessions that haven't been accessed in
// the given duration. Sessions with a runner are never idle.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if _, running := m.runners[id]; running {
			continue
		}
		if session.Info().LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID not yet in
// use. Callers hold the write lock.
func (m *Manager) generateSessionID() string {
	for {
		u := uuid.New()
		id := hex.EncodeToString(u[:2])
		if !m.sessionExists(id) {
			return id
		}
	}
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if _, exists := m.sessions[strings.ToLower(id)]; exists {
			continue
		}

		session, err := m.persistence.Load(id)
		if err != nil {
			m.log.WithField("session", id).WithError(err).Warn("failed to load persisted session")
			continue
		}

		m.sessions[strings.ToLower(id)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		m.log.WithField("count", loadedCount).Info("loaded persisted sessions")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessions := m.List()

	errorCount := 0
	for _, session := range sessions {
		if err := m.persistence.Save(session); err != nil {
			m.log.WithField("session", session.ID).WithError(err).Warn("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}
