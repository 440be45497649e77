// Package terminal is a local single-player client: it draws the engine
// View with tcell and feeds key presses back as engine input, one tick per
// ticker period.
package terminal

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/engine"
)

// Muter is implemented by event sinks that can be silenced
type Muter interface {
	SetMuted(bool)
	Muted() bool
}

// Options configure a Game
type Options struct {
	TickRate  int // ticks per second
	HoldTicks int
	Sink      engine.EventSink
	Log       logrus.FieldLogger
}

// Game runs one engine on a screen
type Game struct {
	screen   tcell.Screen
	engine   *engine.GameEngine
	controls *Controls
	sink     engine.EventSink
	rate     int
	log      logrus.FieldLogger
}

// New creates a game drawing eng on screen. The screen must already be
// initialized; the caller owns its Fini.
func New(screen tcell.Screen, eng *engine.GameEngine, opts Options) *Game {
	if opts.TickRate < 1 {
		opts.TickRate = engine.DefaultTPS
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Sink != nil {
		eng.SetSink(opts.Sink)
	}
	return &Game{
		screen:   screen,
		engine:   eng,
		controls: NewControls(opts.HoldTicks),
		sink:     opts.Sink,
		rate:     opts.TickRate,
		log:      opts.Log.WithField("component", "terminal"),
	}
}

// handleEvent applies a screen event and reports whether to keep playing
func (g *Game) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch g.controls.HandleKey(ev) {
		case ActionQuit:
			return false
		case ActionMute:
			if m, ok := g.sink.(Muter); ok {
				m.SetMuted(!m.Muted())
			}
		}
	case *tcell.EventResize:
		g.screen.Sync()
	}
	return true
}

// tick steps the engine once with the held keys and redraws
func (g *Game) tick() []engine.Event {
	in := g.controls.Next()
	settled := g.engine.IsSettled()
	events := g.engine.Step(in)
	if settled && in.Restart {
		// Keys pressed on the banner must not carry into the new stage
		g.controls.Release()
		g.log.WithFields(logrus.Fields{
			"level": g.engine.Config().Level,
			"index": g.engine.LevelIndex(),
		}).Info("stage started")
	}
	for _, e := range events {
		switch e.Type {
		case engine.EventVictory, engine.EventGameOver:
			g.log.WithFields(logrus.Fields{"event": e.Type, "tick": e.Tick}).Info("stage settled")
		}
	}
	Draw(g.screen, g.engine.View())
	return events
}

// Run plays until the player quits or ctx is cancelled
func (g *Game) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := g.screen.PollEvent()
			if ev == nil {
				// Screen finalized
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(g.rate))
	defer ticker.Stop()

	Draw(g.screen, g.engine.View())
	g.log.WithFields(logrus.Fields{"rate": g.rate, "level": g.engine.Config().Level}).Info("play started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !g.handleEvent(ev) {
				g.log.Info("player quit")
				return nil
			}
		case <-ticker.C:
			g.tick()
		}
	}
}
