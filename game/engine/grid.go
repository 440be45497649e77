package engine

// Grid is the two-layer map. The primary layer holds at most one entity per
// cell. The overlay layer only holds bullets that are crossing a cell whose
// primary content must stay intact (water, or an enemy tank under friendly
// fire).
type Grid struct {
	width   int
	height  int
	cells   [][]Cell
	overlay [][]*Bullet
}

// NewGrid creates an empty width x height grid
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	cells := make([][]Cell, height)
	overlay := make([][]*Bullet, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
		overlay[y] = make([]*Bullet, width)
	}
	return &Grid{width: width, height: height, cells: cells, overlay: overlay}
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// InBounds reports whether x,y addresses a cell of the grid
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Get returns the primary content at x,y. Out of bounds reads return nil.
func (g *Grid) Get(x, y int) Cell {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.cells[y][x]
}

// At is Get for a Position
func (g *Grid) At(p Position) Cell {
	return g.Get(p.X, p.Y)
}

// Set stores c at x,y. Out of bounds writes are ignored.
func (g *Grid) Set(x, y int, c Cell) bool {
	if !g.InBounds(x, y) {
		return false
	}
	g.cells[y][x] = c
	return true
}

// Clear empties the primary cell at x,y
func (g *Grid) Clear(x, y int) {
	g.Set(x, y, nil)
}

// IsEmpty reports whether x,y is inside the grid and holds nothing
func (g *Grid) IsEmpty(x, y int) bool {
	return g.InBounds(x, y) && g.cells[y][x] == nil
}

// Overlay returns the bullet drawn above the primary cell at x,y, if any
func (g *Grid) Overlay(x, y int) *Bullet {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.overlay[y][x]
}

// SetOverlay places b on the overlay layer at x,y
func (g *Grid) SetOverlay(x, y int, b *Bullet) bool {
	if !g.InBounds(x, y) {
		return false
	}
	g.overlay[y][x] = b
	return true
}

// ClearOverlay removes any overlay bullet at x,y
func (g *Grid) ClearOverlay(x, y int) {
	g.SetOverlay(x, y, nil)
}

// Each calls fn for every primary cell in row-major order
func (g *Grid) Each(fn func(x, y int, c Cell)) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			fn(x, y, g.cells[y][x])
		}
	}
}

// EachOverlay calls fn for every overlay bullet in row-major order
func (g *Grid) EachOverlay(fn func(x, y int, b *Bullet)) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if b := g.overlay[y][x]; b != nil {
				fn(x, y, b)
			}
		}
	}
}

// Count returns the number of primary cells of the given kind
func (g *Grid) Count(kind CellKind) int {
	n := 0
	g.Each(func(_, _ int, c Cell) {
		if KindOf(c) == kind {
			n++
		}
	})
	return n
}
