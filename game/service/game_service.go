package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/battlecity/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, levelName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	SetInput(ctx context.Context, sessionID string, in engine.Input) error
	Step(ctx context.Context, sessionID string, in engine.Input, ticks int) (*StepResult, error)
	Restart(ctx context.Context, sessionID string) (*engine.View, error)

	// Game State
	GetView(ctx context.Context, sessionID string) (*engine.View, error)
	DescribeCell(ctx context.Context, sessionID string, x, y int) (*engine.CellInfo, error)

	// Real-time play
	StartRunner(ctx context.Context, sessionID string, rate int, onTick TickFunc) error
	StopRunner(ctx context.Context, sessionID string) error

	// Levels
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	LoadLevel(ctx context.Context, levelName string) (*engine.LevelConfig, error)
	SaveLevel(ctx context.Context, levelName string, config *engine.LevelConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, levelName string) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, levelName string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	StartRunner(id string, rate int, onTick TickFunc) error
	StopRunner(id string) error
}

// ConfigManager handles level loading. It is also the campaign source the
// session engines play through.
type ConfigManager interface {
	engine.LevelSource
	LoadLevel(name string) (*engine.LevelConfig, error)
	ListLevels() ([]*LevelInfo, error)
	GetDefault() *engine.LevelConfig
	SaveLevel(name string, config *engine.LevelConfig) error
	IndexOf(name string) int
	NameAt(index int) string
}

// Session represents an active game session. The engine is only touched
// while holding the session lock, so a tick runner and request handlers
// never step it concurrently.
type Session struct {
	ID             string
	LevelName      string
	Engine         *engine.GameEngine
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu      sync.Mutex
	input   engine.Input
	running bool
}

// NewSession wraps an engine in a session
func NewSession(id, levelName string, eng *engine.GameEngine) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		LevelName:      levelName,
		Engine:         eng,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// SetInput replaces the held input the runner plays every tick
func (s *Session) SetInput(in engine.Input) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = in
}

// Input returns the held input
func (s *Session) Input() engine.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Tick plays one tick with the held input. A held restart request is
// consumed by the tick that sees it.
func (s *Session) Tick() ([]engine.Event, engine.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.Engine.Step(s.input)
	s.input.Restart = false
	return events, s.Engine.View()
}

// Advance plays up to ticks ticks with in held, stopping early when ctx is
// done. Only the first tick carries the restart request. It returns the
// number of ticks played.
func (s *Session) Advance(ctx context.Context, in engine.Input, ticks int) (int, []engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []engine.Event
	played := 0
	for played < ticks {
		if ctx.Err() != nil {
			break
		}
		events = append(events, s.Engine.Step(in)...)
		in.Restart = false
		played++
	}
	return played, events
}

// Restart continues a settled run (next level after a win, first level
// after a game over) and otherwise replays the current level from scratch
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = engine.Input{}
	if s.Engine.IsSettled() {
		return s.Engine.Restart()
	}
	return s.Engine.Reset()
}

// View returns the current render view
func (s *Session) View() engine.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engine.View()
}

// DescribeCell reports what occupies x,y
func (s *Session) DescribeCell(x, y int) (engine.CellInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engine.World().DescribeCell(x, y)
}

// State returns the outcome flags of the current run
func (s *Session) State() (gameOver, victory, settled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engine.IsGameOver(), s.Engine.IsVictory(), s.Engine.IsSettled()
}

// Snapshot returns the persistent facts of the session
func (s *Session) Snapshot() (levelIndex, lives int, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.Engine.World()
	return s.Engine.LevelIndex(), w.Lives, w.RunID
}

// SetRunning records whether a tick runner drives the session
func (s *Session) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Running reports whether a tick runner drives the session
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Touch updates the last accessed time
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAccessedAt = time.Now()
}

// Info describes the session
func (s *Session) Info() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.Engine.View()
	return &SessionInfo{
		ID:             s.ID,
		LevelName:      s.LevelName,
		LevelIndex:     s.Engine.LevelIndex(),
		StageName:      s.Engine.Config().StageName,
		RunID:          view.RunID,
		Running:        s.running,
		Input:          s.input,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		View:           view,
	}
}
