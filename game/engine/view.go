package engine

import (
	"fmt"
	"strings"
)

// Sprite is one drawable entity
type Sprite struct {
	X       int       `json:"x"`
	Y       int       `json:"y"`
	Kind    CellKind  `json:"kind"`
	Variant string    `json:"variant,omitempty"`
	Dir     Direction `json:"dir,omitempty"`
	HP      int       `json:"hp,omitempty"`
	Owner   string    `json:"owner,omitempty"`
}

// HUD is the status panel shown beside the map
type HUD struct {
	Level     int    `json:"level"`
	StageName string `json:"stage_name"`
	Tutorial  int    `json:"tutorial"`
	Lives     int    `json:"lives"`
	Remaining int    `json:"remaining"`
	Reserve   int    `json:"reserve"`
	Tick      int    `json:"tick"`
	Time      int    `json:"time"`
	Started   bool   `json:"started"`
	Alive     bool   `json:"alive"`
	Powerup   bool   `json:"powerup"`
	GameOver  bool   `json:"game_over"`
	Win       bool   `json:"win"`
	Settled   bool   `json:"settled"`
}

// View is everything a renderer needs to draw one frame. A settled world
// has no sprites, only the HUD.
type View struct {
	RunID   string     `json:"run_id"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Cells   []Sprite   `json:"cells"`
	Overlay []Sprite   `json:"overlay"`
	Forest  []Position `json:"forest"`
	HUD     HUD        `json:"hud"`
}

// View builds the render view of the world
func (w *World) View() View {
	v := View{
		RunID:   w.RunID,
		Width:   w.Grid.Width(),
		Height:  w.Grid.Height(),
		Cells:   []Sprite{},
		Overlay: []Sprite{},
		Forest:  []Position{},
		HUD: HUD{
			Level:     w.Level,
			StageName: w.StageName,
			Tutorial:  w.Tutorial,
			Lives:     w.Lives,
			Remaining: w.Remaining,
			Reserve:   w.Reserve,
			Tick:      w.Tick,
			Time:      w.Time,
			Started:   w.Started(),
			Alive:     w.PlayerAlive(),
			Powerup:   w.PowerupGot,
			GameOver:  w.GameOver,
			Win:       w.Win,
			Settled:   w.Settled,
		},
	}
	if w.Settled {
		return v
	}

	w.Grid.Each(func(x, y int, c Cell) {
		if c != nil {
			v.Cells = append(v.Cells, spriteOf(x, y, c))
		}
	})
	w.Grid.EachOverlay(func(x, y int, b *Bullet) {
		v.Overlay = append(v.Overlay, spriteOf(x, y, b))
	})
	v.Forest = append(v.Forest, w.Forest...)
	return v
}

func spriteOf(x, y int, c Cell) Sprite {
	s := Sprite{X: x, Y: y, Kind: KindOf(c)}
	switch c := c.(type) {
	case *Brick:
		s.HP = c.HP
	case *Mirror:
		s.Variant = string(c.Orientation)
	case *Tank:
		s.Dir = c.Dir
		s.HP = c.HP
		s.Owner = c.ID.Label()
	case *EnemyTank:
		s.Dir = c.Dir
		s.HP = c.HP
		s.Owner = c.ID.Label()
		s.Variant = string(c.Variant)
	case *Bullet:
		s.Dir = c.Dir
		s.Owner = c.Owner.Label()
	case *Stone, *Water:
	}
	return s
}

// Glyph returns the single character used for a sprite in text renderings
func Glyph(s Sprite) rune {
	switch s.Kind {
	case KindStone:
		return '#'
	case KindBrick:
		return 'B'
	case KindHomeBase:
		return 'H'
	case KindMirror:
		if s.Variant == string(NE) {
			return '/'
		}
		return '\\'
	case KindWater:
		return '~'
	case KindTank:
		return dirGlyph(s.Dir, 'P')
	case KindEnemyTank:
		if s.Variant == string(Buff) {
			return 'X'
		}
		return 'E'
	case KindBullet:
		return '*'
	}
	return '.'
}

func dirGlyph(d Direction, fallback rune) rune {
	switch d {
	case Left:
		return '<'
	case Right:
		return '>'
	case Up:
		return '^'
	case Down:
		return 'v'
	}
	return fallback
}

// Text renders the view as a plain text grid followed by a status line.
// Overlay bullets are drawn over their cell; forest is drawn only where the
// cell is otherwise empty.
func (v View) Text() string {
	var b strings.Builder
	if v.HUD.Settled {
		switch {
		case v.HUD.Win:
			b.WriteString("STAGE CLEAR - send restart to continue\n")
		case v.HUD.GameOver:
			b.WriteString("GAME OVER - send restart to play again\n")
		}
		b.WriteString(v.Status())
		return b.String()
	}

	grid := make([][]rune, v.Height)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(".", v.Width))
	}
	for _, p := range v.Forest {
		if p.Y >= 0 && p.Y < v.Height && p.X >= 0 && p.X < v.Width {
			grid[p.Y][p.X] = '%'
		}
	}
	for _, s := range v.Cells {
		grid[s.Y][s.X] = Glyph(s)
	}
	for _, s := range v.Overlay {
		grid[s.Y][s.X] = Glyph(s)
	}
	for _, row := range grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	b.WriteString(v.Status())
	return b.String()
}

// Status is the one-line HUD summary
func (v View) Status() string {
	state := "playing"
	switch {
	case v.HUD.Win:
		state = "victory"
	case v.HUD.GameOver:
		state = "game over"
	case !v.HUD.Started:
		state = "get ready"
	case !v.HUD.Alive:
		state = "destroyed"
	}
	return fmt.Sprintf("Stage %d %s | lives %d | enemies %d (+%d) | time %d | %s\n",
		v.HUD.Level, v.HUD.StageName, v.HUD.Lives, v.HUD.Remaining, v.HUD.Reserve, v.HUD.Time, state)
}

// CellInfo describes both layers of one cell
type CellInfo struct {
	Position Position `json:"position"`
	Kind     CellKind `json:"kind"`
	Sprite   *Sprite  `json:"sprite,omitempty"`
	Overlay  *Sprite  `json:"overlay,omitempty"`
	Forest   bool     `json:"forest"`
}

// DescribeCell reports what occupies x,y
func (w *World) DescribeCell(x, y int) (CellInfo, error) {
	if !w.Grid.InBounds(x, y) {
		return CellInfo{}, fmt.Errorf("cell (%d,%d) is outside the %dx%d grid", x, y, w.Grid.Width(), w.Grid.Height())
	}
	info := CellInfo{Position: Position{X: x, Y: y}, Kind: KindOf(w.Grid.Get(x, y))}
	if c := w.Grid.Get(x, y); c != nil {
		s := spriteOf(x, y, c)
		info.Sprite = &s
	}
	if b := w.Grid.Overlay(x, y); b != nil {
		s := spriteOf(x, y, b)
		info.Overlay = &s
	}
	for _, p := range w.Forest {
		if p.X == x && p.Y == y {
			info.Forest = true
			break
		}
	}
	return info, nil
}
