package main

import (
	"github.com/wricardo/battlecity/game/engine"
)

// board is a decoded View used for planning
type board struct {
	width, height int
	cells         map[engine.Position]engine.Sprite
	player        *engine.Sprite
	enemies       []engine.Sprite
}

func newBoard(v engine.View) *board {
	b := &board{
		width:  v.Width,
		height: v.Height,
		cells:  make(map[engine.Position]engine.Sprite, len(v.Cells)),
	}
	for _, s := range v.Cells {
		b.cells[engine.Position{X: s.X, Y: s.Y}] = s
		switch s.Kind {
		case engine.KindTank:
			p := s
			b.player = &p
		case engine.KindEnemyTank:
			b.enemies = append(b.enemies, s)
		}
	}
	return b
}

func (b *board) inBounds(p engine.Position) bool {
	return p.X >= 0 && p.X < b.width && p.Y >= 0 && p.Y < b.height
}

func (b *board) kind(p engine.Position) engine.CellKind {
	if s, ok := b.cells[p]; ok {
		return s.Kind
	}
	return engine.KindEmpty
}

// drivable reports whether the player can enter p, counting bricks since
// they can be shot away
func (b *board) drivable(p engine.Position) bool {
	if !b.inBounds(p) {
		return false
	}
	switch b.kind(p) {
	case engine.KindEmpty, engine.KindBrick:
		return true
	}
	return false
}

// lineOfFire returns the direction from `from` in which a straight shot
// reaches an enemy. Bricks on the way are fine, they just cost a shot.
// Stone, mirrors and the home base stop the search.
func (b *board) lineOfFire(from engine.Position) (engine.Direction, bool) {
	for _, d := range engine.Directions {
		p := from.Step(d)
		for b.inBounds(p) {
			k := b.kind(p)
			if k == engine.KindEnemyTank {
				return d, true
			}
			if k == engine.KindStone || k == engine.KindMirror || k == engine.KindHomeBase || k == engine.KindTank {
				break
			}
			p = p.Step(d)
		}
	}
	return engine.NoDirection, false
}

// firstStep runs a BFS from the player to the nearest cell with a line of
// fire and returns the first direction to take
func (b *board) firstStep() (engine.Direction, bool) {
	start := engine.Position{X: b.player.X, Y: b.player.Y}
	type node struct {
		pos   engine.Position
		first engine.Direction
	}
	seen := map[engine.Position]bool{start: true}
	queue := []node{}
	for _, d := range engine.Directions {
		n := start.Step(d)
		if b.drivable(n) {
			seen[n] = true
			queue = append(queue, node{n, d})
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := b.lineOfFire(cur.pos); ok {
			return cur.first, true
		}
		for _, d := range engine.Directions {
			n := cur.pos.Step(d)
			if seen[n] || !b.drivable(n) {
				continue
			}
			seen[n] = true
			queue = append(queue, node{n, cur.first})
		}
	}
	return engine.NoDirection, false
}

// Strategy decides the input for the next few ticks from a view
type Strategy interface {
	Next(v engine.View) engine.Input
}

// HunterStrategy shoots any enemy in a straight line and otherwise drives
// towards the closest spot that has one
type HunterStrategy struct{}

// Next implements Strategy
func (HunterStrategy) Next(v engine.View) engine.Input {
	if v.HUD.Settled {
		return engine.Input{}
	}
	b := newBoard(v)
	if b.player == nil {
		// Destroyed: respawn if lives remain
		return engine.Input{Restart: true}
	}
	if len(b.enemies) == 0 || !v.HUD.Started {
		return engine.Input{}
	}

	pos := engine.Position{X: b.player.X, Y: b.player.Y}
	if d, ok := b.lineOfFire(pos); ok {
		if d == b.player.Dir {
			return engine.Input{Fire: true}
		}
		// Turn first, a bullet leaves in the facing direction
		return engine.Input{Direction: d, Fire: true}
	}

	d, ok := b.firstStep()
	if !ok {
		return engine.Input{}
	}
	in := engine.Input{Direction: d}
	if b.kind(pos.Step(d)) == engine.KindBrick && b.player.Dir == d {
		in.Fire = true
	}
	return in
}
