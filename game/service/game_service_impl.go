package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/logger"
)

// ErrInvalidInput is returned for requests the engine cannot act on
var ErrInvalidInput = errors.New("invalid input")

// DefaultTickRate is the runner speed used when none is requested
const DefaultTickRate = engine.DefaultTPS

// MaxTickRate bounds the speed of a runner
const MaxTickRate = 240

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	levels   ConfigManager
	log      logrus.FieldLogger
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, levels ConfigManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
		log:      logger.Log.WithField("component", "service"),
	}
}

// CreateSession creates a new game session starting at levelName, or at
// the start of the campaign when levelName is empty
func (s *gameServiceImpl) CreateSession(ctx context.Context, levelName string) (*SessionInfo, error) {
	session, err := s.sessions.Create("", levelName)
	if err != nil {
		if levelName != "" && s.levels.IndexOf(levelName) < 0 {
			if ids := s.levelIDs(); len(ids) > 0 {
				return nil, fmt.Errorf("level '%s' not found, available levels: %v: %w", levelName, ids, err)
			}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"session": session.ID,
		"level":   levelName,
		"run_id":  session.Engine.World().RunID,
	}).Info("session created")

	return session.Info(), nil
}

func (s *gameServiceImpl) levelIDs() []string {
	levels, err := s.levels.ListLevels()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(levels))
	for _, l := range levels {
		ids = append(ids, l.LevelID)
	}
	return ids
}

// session looks a session up and marks it accessed
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return session, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Info(), nil
}

// ListSessions returns all active sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sess.Info())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSession removes a session, stopping its runner first
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.log.WithField("session", sessionID).Info("session deleted")
	return nil
}

func validInput(in engine.Input) error {
	if in.Direction != engine.NoDirection && !in.Direction.Valid() {
		return fmt.Errorf("%w: direction %q must be one of left, right, up, down", ErrInvalidInput, in.Direction)
	}
	return nil
}

// SetInput replaces the input the session's runner holds down
func (s *gameServiceImpl) SetInput(ctx context.Context, sessionID string, in engine.Input) error {
	if err := validInput(in); err != nil {
		return err
	}
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.SetInput(in)
	return nil
}

// Step plays ticks ticks with in held. Zero ticks means one.
func (s *gameServiceImpl) Step(ctx context.Context, sessionID string, in engine.Input, ticks int) (*StepResult, error) {
	if ticks == 0 {
		ticks = 1
	}
	if ticks < 0 || ticks > engine.MaxStepTicks {
		return nil, fmt.Errorf("%w: ticks must be between 1 and %d, got %d", ErrInvalidInput, engine.MaxStepTicks, ticks)
	}
	if err := validInput(in); err != nil {
		return nil, err
	}

	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	played, events := session.Advance(ctx, in, ticks)
	if events == nil {
		events = []engine.Event{}
	}
	gameOver, victory, settled := session.State()
	result := &StepResult{
		SessionID: session.ID,
		Ticks:     played,
		Events:    events,
		View:      session.View(),
		GameOver:  gameOver,
		Victory:   victory,
		Settled:   settled,
	}

	s.log.WithFields(logrus.Fields{
		"session": session.ID,
		"ticks":   played,
		"events":  len(events),
		"tick":    result.View.HUD.Tick,
	}).Debug("stepped")

	if err := ctx.Err(); err != nil && played < ticks {
		return result, err
	}
	return result, nil
}

// Restart continues a settled run or replays the current level
func (s *gameServiceImpl) Restart(ctx context.Context, sessionID string) (*engine.View, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Restart(); err != nil {
		return nil, fmt.Errorf("failed to restart session %s: %w", sessionID, err)
	}
	if err := s.sessions.Save(session.ID); err != nil {
		s.log.WithField("session", session.ID).WithError(err).Warn("failed to persist session")
	}
	view := session.View()
	return &view, nil
}

// GetView returns the current render view of a session
func (s *gameServiceImpl) GetView(ctx context.Context, sessionID string) (*engine.View, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

// DescribeCell reports both layers of one cell of a session's grid
func (s *gameServiceImpl) DescribeCell(ctx context.Context, sessionID string, x, y int) (*engine.CellInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	info, err := session.DescribeCell(x, y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &info, nil
}

// StartRunner plays the session in real time at rate ticks per second
func (s *gameServiceImpl) StartRunner(ctx context.Context, sessionID string, rate int, onTick TickFunc) error {
	if rate == 0 {
		rate = DefaultTickRate
	}
	if rate < 1 || rate > MaxTickRate {
		return fmt.Errorf("%w: rate must be between 1 and %d, got %d", ErrInvalidInput, MaxTickRate, rate)
	}
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	return s.sessions.StartRunner(sessionID, rate, onTick)
}

// StopRunner stops real-time play of the session
func (s *gameServiceImpl) StopRunner(ctx context.Context, sessionID string) error {
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	return s.sessions.StopRunner(sessionID)
}

// ListLevels returns the campaign levels
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	return s.levels.ListLevels()
}

// LoadLevel loads a specific level
func (s *gameServiceImpl) LoadLevel(ctx context.Context, levelName string) (*engine.LevelConfig, error) {
	return s.levels.LoadLevel(levelName)
}

// SaveLevel saves a level to disk
func (s *gameServiceImpl) SaveLevel(ctx context.Context, levelName string, config *engine.LevelConfig) error {
	return s.levels.SaveLevel(levelName, config)
}
