package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// World is the complete mutable state of one run of a level. It is built
// fresh from a LevelConfig on every (re)start and never reset in place.
type World struct {
	RunID string
	Grid  *Grid
	Rules Rules

	Player  *Tank
	Enemies map[TankID]*EnemyTank

	PlayerSpawn Position
	EnemySpawns []Position
	Forest      []Position

	// Remaining counts live enemy tanks; Reserve counts enemies not yet deployed
	Remaining  int
	Reserve    int
	TotalFoes  int
	nextEnemy  TankID
	Lives      int
	PowerupReq int
	PowerupGot bool

	Tick     int
	Time     int
	GameOver bool
	Win      bool
	Settled  bool
	SettleAt int

	// Level metadata
	Level     int
	StageName string
	Tutorial  int

	rng    *rand.Rand
	sink   EventSink
	events []Event
}

// NewWorld creates an empty world, mostly useful for building scenarios by hand
func NewWorld(width, height int, rules Rules) *World {
	seed := rules.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &World{
		RunID:     uuid.NewString(),
		Grid:      NewGrid(width, height),
		Rules:     rules,
		Enemies:   make(map[TankID]*EnemyTank),
		nextEnemy: PlayerID + 1,
		Lives:     rules.Lives,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// BuildWorld creates the initial world state for a level
func BuildWorld(config *LevelConfig, sink EventSink) (*World, error) {
	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	rules := config.EffectiveRules()
	w := NewWorld(config.Width(), config.Height(), rules)
	w.sink = sink
	w.Level = config.Level
	w.StageName = config.StageName
	w.Tutorial = config.Tutorial
	w.PowerupReq = config.PowerupReq

	for y, row := range config.Map {
		for x, code := range row {
			pos := Position{X: x, Y: y}
			switch code {
			case CodePlayerSpawn:
				w.PlayerSpawn = pos
			case CodeEnemySpawn:
				w.EnemySpawns = append(w.EnemySpawns, pos)
			case CodeHomeBase:
				w.Grid.Set(x, y, &Brick{HP: HomeBaseHP, Base: true})
			case CodeStone:
				w.Grid.Set(x, y, &Stone{})
			case CodeBrick:
				w.Grid.Set(x, y, &Brick{HP: BrickHP})
			case CodeMirrorNE:
				w.Grid.Set(x, y, &Mirror{Orientation: NE})
			case CodeMirrorSE:
				w.Grid.Set(x, y, &Mirror{Orientation: SE})
			case CodeWater:
				w.Grid.Set(x, y, &Water{})
			case CodeForest:
				w.Forest = append(w.Forest, pos)
			}
		}
	}

	if _, err := w.PlacePlayer(w.PlayerSpawn, Right); err != nil {
		return nil, err
	}

	initial := len(w.EnemySpawns)
	if config.EnemyCount > 0 && config.EnemyCount < initial {
		initial = config.EnemyCount
	}
	for _, pos := range w.EnemySpawns[:initial] {
		if _, err := w.PlaceEnemy(pos, Up, w.rollVariant()); err != nil {
			return nil, err
		}
	}
	if config.EnemyCount > initial {
		w.Reserve = config.EnemyCount - initial
	}
	w.TotalFoes = w.Remaining + w.Reserve

	return w, nil
}

// SetSink replaces the event sink
func (w *World) SetSink(sink EventSink) {
	w.sink = sink
}

// PlacePlayer puts a fresh player tank on an empty cell
func (w *World) PlacePlayer(pos Position, dir Direction) (*Tank, error) {
	if !w.Grid.IsEmpty(pos.X, pos.Y) {
		return nil, fmt.Errorf("cannot place player at (%d,%d): cell is %s", pos.X, pos.Y, KindOf(w.Grid.At(pos)))
	}
	t := newTank(PlayerID, pos, dir, PlayerHP)
	w.Player = &t
	w.Grid.Set(pos.X, pos.Y, w.Player)
	return w.Player, nil
}

// PlaceEnemy puts a new enemy tank on an empty cell and assigns it the next id
func (w *World) PlaceEnemy(pos Position, dir Direction, variant EnemyVariant) (*EnemyTank, error) {
	if !w.Grid.IsEmpty(pos.X, pos.Y) {
		return nil, fmt.Errorf("cannot place enemy at (%d,%d): cell is %s", pos.X, pos.Y, KindOf(w.Grid.At(pos)))
	}
	hp := RegularHP
	if variant == Buff {
		hp = BuffHP
	}
	e := &EnemyTank{
		Tank:    newTank(w.nextEnemy, pos, dir, hp),
		Variant: variant,
	}
	w.nextEnemy++
	e.NextMoveAt = w.Tick + w.between(w.Rules.EnemyMoveMin, w.Rules.EnemyMoveMax)
	e.NextFireAt = w.Tick + w.between(w.Rules.EnemyFireMin, w.Rules.EnemyFireMax)
	w.Enemies[e.ID] = e
	w.Remaining++
	w.Grid.Set(pos.X, pos.Y, e)
	return e, nil
}

// Place puts terrain on the primary layer, replacing whatever was there
func (w *World) Place(x, y int, c Cell) bool {
	return w.Grid.Set(x, y, c)
}

// PlayerAlive reports whether the player's tank is on the grid
func (w *World) PlayerAlive() bool {
	return w.Player != nil
}

// Alive reports whether the tank with the given id is on the grid
func (w *World) Alive(id TankID) bool {
	if id == PlayerID {
		return w.Player != nil
	}
	_, ok := w.Enemies[id]
	return ok
}

// owner returns the live tank that owns id's bullets, or nil
func (w *World) owner(id TankID) *Tank {
	if id == PlayerID {
		return w.Player
	}
	if e, ok := w.Enemies[id]; ok {
		return &e.Tank
	}
	return nil
}

// Started reports whether the opening countdown has elapsed
func (w *World) Started() bool {
	return w.Tick > w.Rules.StartDelay
}

// Over reports whether either end-of-run latch is set
func (w *World) Over() bool {
	return w.GameOver || w.Win
}

// between returns a uniform integer in [lo, hi]
func (w *World) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + w.rng.Intn(hi-lo+1)
}

func (w *World) rollVariant() EnemyVariant {
	if w.Rules.BuffChance > 0 && w.rng.Float64() < w.Rules.BuffChance {
		return Buff
	}
	return Regular
}

// due reports whether a cadence of n ticks fires on the current tick
func (w *World) due(n int) bool {
	if n <= 1 {
		return true
	}
	return w.Tick%n == 0
}
