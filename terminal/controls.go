package terminal

import (
	"github.com/gdamore/tcell/v2"
	"github.com/wricardo/battlecity/game/engine"
)

// DefaultHoldTicks is how long a key press counts as held. Terminals only
// report presses, so a held key is the autorepeat stream of presses.
const DefaultHoldTicks = 12

// Action is what a key asks of the play loop beyond tank input
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionMute
)

// Controls turns key presses into the per-tick engine input
type Controls struct {
	HoldTicks int

	dir     engine.Direction
	dirTTL  int
	fireTTL int
	restart bool
}

// NewControls creates controls that hold each press for holdTicks ticks
func NewControls(holdTicks int) *Controls {
	if holdTicks < 1 {
		holdTicks = DefaultHoldTicks
	}
	return &Controls{HoldTicks: holdTicks}
}

// HandleKey records a key press
func (c *Controls) HandleKey(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyLeft:
		c.press(engine.Left)
	case tcell.KeyRight:
		c.press(engine.Right)
	case tcell.KeyUp:
		c.press(engine.Up)
	case tcell.KeyDown:
		c.press(engine.Down)
	case tcell.KeyEnter:
		c.restart = true
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ':
			c.fireTTL = c.HoldTicks
		case 'r', 'R':
			c.restart = true
		case 'q', 'Q':
			return ActionQuit
		case 'm', 'M':
			return ActionMute
		case 'h', 'a':
			c.press(engine.Left)
		case 'l', 'd':
			c.press(engine.Right)
		case 'k', 'w':
			c.press(engine.Up)
		case 'j', 's':
			c.press(engine.Down)
		}
	}
	return ActionNone
}

func (c *Controls) press(d engine.Direction) {
	c.dir = d
	c.dirTTL = c.HoldTicks
}

// Next returns the input for the coming tick and ages the held keys.
// A restart request is sent once.
func (c *Controls) Next() engine.Input {
	in := engine.Input{Restart: c.restart}
	c.restart = false
	if c.dirTTL > 0 {
		in.Direction = c.dir
		c.dirTTL--
	}
	if c.fireTTL > 0 {
		in.Fire = true
		c.fireTTL--
	}
	return in
}

// Release drops every held key
func (c *Controls) Release() {
	c.dirTTL = 0
	c.fireTTL = 0
	c.restart = false
}
