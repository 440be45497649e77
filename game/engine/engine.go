package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoLoadableLevel is returned when every level of a source fails to load
var ErrNoLoadableLevel = errors.New("no loadable level")

// Input is the held input for one tick
type Input struct {
	Direction Direction `json:"direction,omitempty"`
	Fire      bool      `json:"fire,omitempty"`
	Restart   bool      `json:"restart,omitempty"`
}

// LevelSource supplies the ordered levels of a campaign
type LevelSource interface {
	LevelCount() int
	LevelAt(index int) (*LevelConfig, error)
}

// Engine provides the main interface for game operations
type Engine interface {
	// Simulation
	Step(in Input) []Event
	Restart() error
	Reset() error

	// State
	World() *World
	View() View
	IsGameOver() bool
	IsVictory() bool
	IsSettled() bool

	// Level
	Config() *LevelConfig
	LevelIndex() int
}

// GameEngine implements the Engine interface. It owns the current World
// and swaps in a freshly built one on every restart.
type GameEngine struct {
	world  *World
	config *LevelConfig
	source LevelSource
	index  int
	sink   EventSink
	log    logrus.FieldLogger
}

// NewEngine creates an engine playing a single level
func NewEngine(config *LevelConfig) (*GameEngine, error) {
	e := &GameEngine{
		config: config,
		log:    logrus.StandardLogger(),
	}
	world, err := BuildWorld(config, nil)
	if err != nil {
		return nil, err
	}
	e.world = world
	return e, nil
}

// NewEngineFromSource creates an engine playing the campaign of source,
// starting at the first loadable level at or after start
func NewEngineFromSource(source LevelSource, start int, log logrus.FieldLogger) (*GameEngine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	index, config, err := FirstLoadableLevel(source, start, log)
	if err != nil {
		return nil, err
	}
	world, err := BuildWorld(config, nil)
	if err != nil {
		return nil, err
	}
	return &GameEngine{
		world:  world,
		config: config,
		source: source,
		index:  index,
		log:    log,
	}, nil
}

// FirstLoadableLevel returns the first level at or after start that loads
// and builds. Failures are logged and skipped.
func FirstLoadableLevel(source LevelSource, start int, log logrus.FieldLogger) (int, *LevelConfig, error) {
	if source == nil {
		return 0, nil, fmt.Errorf("level source is nil")
	}
	if start < 0 {
		start = 0
	}
	for i := start; i < source.LevelCount(); i++ {
		config, err := source.LevelAt(i)
		if err == nil {
			err = ValidateLevelConfig(config)
		}
		if err != nil {
			if log != nil {
				log.WithFields(logrus.Fields{"index": i}).WithError(err).Warn("skipping level that failed to load")
			}
			continue
		}
		return i, config, nil
	}
	return 0, nil, fmt.Errorf("%w: tried levels %d..%d", ErrNoLoadableLevel, start, source.LevelCount()-1)
}

// SetSink routes events of this and every later World to sink
func (e *GameEngine) SetSink(sink EventSink) {
	e.sink = sink
	e.world.SetSink(sink)
}

// SetLogger replaces the engine's logger
func (e *GameEngine) SetLogger(log logrus.FieldLogger) {
	if log != nil {
		e.log = log
	}
}

// World returns the current world
func (e *GameEngine) World() *World {
	return e.world
}

// Config returns the level being played
func (e *GameEngine) Config() *LevelConfig {
	return e.config
}

// LevelIndex returns the campaign index of the level being played
func (e *GameEngine) LevelIndex() int {
	return e.index
}

// IsGameOver returns whether the game-over latch is set
func (e *GameEngine) IsGameOver() bool {
	return e.world.GameOver
}

// IsVictory returns whether the win latch is set
func (e *GameEngine) IsVictory() bool {
	return e.world.Win
}

// IsSettled returns whether the end-of-run countdown has elapsed
func (e *GameEngine) IsSettled() bool {
	return e.world.Settled
}

// View returns the render view of the current world
func (e *GameEngine) View() View {
	return e.world.View()
}

// Step runs one tick with the given input and returns the tick's events.
// Once the world has settled only a restart request has any effect.
func (e *GameEngine) Step(in Input) []Event {
	if e.world.Settled {
		if in.Restart {
			if err := e.Restart(); err != nil {
				e.log.WithError(err).Error("restart failed")
			}
		}
		return nil
	}
	return e.world.tick(in)
}

// Restart handles a restart request. A settled win advances to the next
// loadable level, a settled game over starts the campaign again with fresh
// lives, and otherwise a dead player respawns if lives remain.
func (e *GameEngine) Restart() error {
	w := e.world
	switch {
	case w.Settled && w.Win:
		return e.advance()
	case w.Settled && w.GameOver:
		return e.load(0, nil)
	default:
		w.Respawn()
		return nil
	}
}

// Reset rebuilds the current level from scratch with fresh lives
func (e *GameEngine) Reset() error {
	world, err := BuildWorld(e.config, e.sink)
	if err != nil {
		return err
	}
	e.world = world
	e.log.WithFields(logrus.Fields{"level": e.config.Level, "run_id": world.RunID}).Info("level reset")
	return nil
}

// Goto switches to the first loadable campaign level at or after index,
// keeping the current lives when there are more than the level grants
func (e *GameEngine) Goto(index int) error {
	lives := e.world.Lives
	return e.load(index, &lives)
}

// advance moves on to the level after the current one, carrying lives over.
// Past the last level the campaign starts over.
func (e *GameEngine) advance() error {
	lives := e.world.Lives
	if e.source == nil {
		return e.rebuild(e.index, e.config, &lives)
	}
	next := e.index + 1
	if next >= e.source.LevelCount() {
		e.log.Info("campaign complete, starting over")
		next = 0
	}
	return e.load(next, &lives)
}

// load switches to the first loadable level at or after index
func (e *GameEngine) load(index int, lives *int) error {
	if e.source == nil {
		return e.rebuild(e.index, e.config, lives)
	}
	i, config, err := FirstLoadableLevel(e.source, index, e.log)
	if err != nil && index > 0 {
		i, config, err = FirstLoadableLevel(e.source, 0, e.log)
	}
	if err != nil {
		return err
	}
	return e.rebuild(i, config, lives)
}

func (e *GameEngine) rebuild(index int, config *LevelConfig, lives *int) error {
	world, err := BuildWorld(config, e.sink)
	if err != nil {
		return err
	}
	if lives != nil && *lives > world.Lives {
		world.Lives = *lives
	}
	e.world = world
	e.config = config
	e.index = index
	e.log.WithFields(logrus.Fields{
		"level":  config.Level,
		"stage":  config.StageName,
		"index":  index,
		"run_id": world.RunID,
	}).Info("level loaded")
	return nil
}

// tick runs the ordered passes of one simulation step
func (w *World) tick(in Input) []Event {
	w.Tick++

	w.deployReinforcement()

	if in.Restart {
		w.Respawn()
	}
	if p := w.Player; p != nil {
		if in.Direction.Valid() && w.due(w.Rules.PlayerMoveCadence) {
			w.MoveTank(p, in.Direction)
		}
		if in.Fire && w.Started() {
			w.Fire(p)
		}
		w.stepBullet(p)
	}

	w.runAI()
	w.sweepGhosts()
	w.sweepDestroyed()
	w.checkWin()
	w.checkPowerup()

	w.Time++
	w.settle()

	return w.DrainEvents()
}
