package engine

import "fmt"

// Direction is a facing or travel direction on the grid
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Up    Direction = "up"
	Down  Direction = "down"

	// NoDirection means no direction key is held
	NoDirection Direction = ""
)

// Directions lists the four travel directions in a stable order
var Directions = []Direction{Left, Right, Up, Down}

// Delta returns the unit vector for the direction
func (d Direction) Delta() (int, int) {
	switch d {
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	}
	return 0, 0
}

// Valid reports whether d is one of the four travel directions
func (d Direction) Valid() bool {
	switch d {
	case Left, Right, Up, Down:
		return true
	}
	return false
}

// ParseDirection converts user input into a Direction
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return NoDirection, fmt.Errorf("invalid direction %q", s)
	}
	return d, nil
}

// Orientation is the diagonal a mirror is mounted on
type Orientation string

const (
	NE Orientation = "NE"
	SE Orientation = "SE"
)

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step returns the neighbouring position in direction d
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// TankID identifies a tank and every bullet it fires
type TankID int

// PlayerID is the fixed owner id of the player's tank and bullets
const PlayerID TankID = 0

// Label renders the id the way it is shown to players and logs
func (id TankID) Label() string {
	if id == PlayerID {
		return "player"
	}
	return fmt.Sprintf("enemy-%d", int(id))
}

// CellKind names the variant held by a cell
type CellKind string

const (
	KindEmpty     CellKind = "empty"
	KindStone     CellKind = "stone"
	KindBrick     CellKind = "brick"
	KindHomeBase  CellKind = "home_base"
	KindMirror    CellKind = "mirror"
	KindWater     CellKind = "water"
	KindTank      CellKind = "tank"
	KindEnemyTank CellKind = "enemy_tank"
	KindBullet    CellKind = "bullet"
)

// Cell is the content of one primary grid cell. A nil Cell is empty.
//
// The set of implementations is closed: Stone, Brick, Mirror, Water, Tank,
// EnemyTank and Bullet.
type Cell interface {
	Kind() CellKind
	cell()
}

// KindOf returns the kind of c, treating nil as empty
func KindOf(c Cell) CellKind {
	if c == nil {
		return KindEmpty
	}
	return c.Kind()
}

// Stone is indestructible blocking terrain
type Stone struct{}

// Brick is destructible blocking terrain. A Brick with Base set is the home base.
type Brick struct {
	HP   int  `json:"hp"`
	Base bool `json:"base,omitempty"`
}

// Mirror blocks tanks and reflects bullets
type Mirror struct {
	Orientation Orientation `json:"orientation"`
}

// Water blocks tanks; bullets cross it on the overlay layer
type Water struct{}

// Bullet is a projectile in flight
type Bullet struct {
	Pos    Position  `json:"pos"`
	Dir    Direction `json:"dir"`
	Firing bool      `json:"firing"`
	Owner  TankID    `json:"owner"`
}

// Tank is the player's tank. Enemy tanks embed it.
type Tank struct {
	ID     TankID    `json:"id"`
	Pos    Position  `json:"pos"`
	Dir    Direction `json:"dir"`
	HP     int       `json:"hp"`
	Firing bool      `json:"firing"`

	// Bullet is the tank's single projectile slot. Its position and
	// direction track the in-flight bullet while Firing is set.
	Bullet Bullet `json:"bullet"`
}

// EnemyVariant distinguishes enemy tank builds
type EnemyVariant string

const (
	Regular EnemyVariant = "regular"
	Buff    EnemyVariant = "buff"
)

// EnemyTank is an AI controlled tank
type EnemyTank struct {
	Tank
	Variant EnemyVariant `json:"variant"`

	// Tick schedule for the AI controller
	NextMoveAt int `json:"next_move_at"`
	NextFireAt int `json:"next_fire_at"`
}

func (*Stone) Kind() CellKind { return KindStone }
func (b *Brick) Kind() CellKind {
	if b.Base {
		return KindHomeBase
	}
	return KindBrick
}
func (*Mirror) Kind() CellKind    { return KindMirror }
func (*Water) Kind() CellKind     { return KindWater }
func (*Bullet) Kind() CellKind    { return KindBullet }
func (*Tank) Kind() CellKind      { return KindTank }
func (*EnemyTank) Kind() CellKind { return KindEnemyTank }

func (*Stone) cell()  {}
func (*Brick) cell()  {}
func (*Mirror) cell() {}
func (*Water) cell()  {}
func (*Bullet) cell() {}
func (*Tank) cell()   {}

// newTank creates a tank with an idle bullet slot
func newTank(id TankID, pos Position, dir Direction, hp int) Tank {
	return Tank{
		ID:     id,
		Pos:    pos,
		Dir:    dir,
		HP:     hp,
		Bullet: Bullet{Pos: pos, Dir: dir, Owner: id},
	}
}

// arm sets the tank and its bullet firing from the tank's current pose
func (t *Tank) arm() {
	t.Firing = true
	t.Bullet = Bullet{Pos: t.Pos, Dir: t.Dir, Firing: true, Owner: t.ID}
}

// disarm clears the firing state of the tank and its bullet slot
func (t *Tank) disarm() {
	t.Firing = false
	t.Bullet.Firing = false
}

// Role is the kind of actor driving a resolution
type Role string

const (
	RolePlayer Role = "player"
	RoleEnemy  Role = "enemy"
	RoleBullet Role = "bullet"
)
