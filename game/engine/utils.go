package engine

// CodeName returns the display name of a level code
func CodeName(code int) string {
	switch code {
	case CodeEmpty:
		return "empty"
	case CodePlayerSpawn:
		return "player spawn"
	case CodeEnemySpawn:
		return "enemy spawn"
	case CodeHomeBase:
		return "home base"
	case CodeStone:
		return "stone"
	case CodeBrick:
		return "brick"
	case CodeMirrorNE:
		return "mirror NE"
	case CodeMirrorSE:
		return "mirror SE"
	case CodeWater:
		return "water"
	case CodeForest:
		return "forest"
	}
	return "unknown"
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// FindCode returns the positions holding code in row-major order
func FindCode(config *LevelConfig, code int) []Position {
	var found []Position
	for y, row := range config.Map {
		for x, v := range row {
			if v == code {
				found = append(found, Position{X: x, Y: y})
			}
		}
	}
	return found
}

// tankPassable reports whether a tank can ever drive over a cell with code.
// Bricks count as passable since bullets can clear them.
func tankPassable(code int) bool {
	switch code {
	case CodeStone, CodeMirrorNE, CodeMirrorSE, CodeWater, CodeHomeBase:
		return false
	}
	return true
}

// Reachable returns every cell a tank starting at from can drive to,
// shooting through bricks on the way
func Reachable(config *LevelConfig, from Position) map[Position]bool {
	seen := make(map[Position]bool)
	if from.Y < 0 || from.Y >= config.Height() || from.X < 0 || from.X >= config.Width() {
		return seen
	}
	queue := []Position{from}
	seen[from] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			n := p.Step(d)
			if n.Y < 0 || n.Y >= config.Height() || n.X < 0 || n.X >= config.Width() {
				continue
			}
			if seen[n] || !tankPassable(config.Map[n.Y][n.X]) {
				continue
			}
			seen[n] = true
			queue = append(queue, n)
		}
	}
	return seen
}

// UnreachableSpawns returns the enemy spawn points a tank leaving the player
// spawn can never drive to
func UnreachableSpawns(config *LevelConfig) []Position {
	players := FindCode(config, CodePlayerSpawn)
	if len(players) == 0 {
		return FindCode(config, CodeEnemySpawn)
	}
	reach := Reachable(config, players[0])
	var out []Position
	for _, p := range FindCode(config, CodeEnemySpawn) {
		if !reach[p] {
			out = append(out, p)
		}
	}
	return out
}
