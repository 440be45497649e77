package engine

import "sort"

// enemyOrder returns the live enemy ids in row-major grid order, the order
// the AI pass visits them in
func (w *World) enemyOrder() []TankID {
	ids := make([]TankID, 0, len(w.Enemies))
	for id := range w.Enemies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := w.Enemies[ids[i]].Pos, w.Enemies[ids[j]].Pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return ids
}

// runAI gives every live enemy tank one turn: a scheduled random move, a
// scheduled coin flip to open fire, and a bullet step while firing
func (w *World) runAI() []StepResult {
	var results []StepResult
	visited := make(map[TankID]bool, len(w.Enemies))
	for _, id := range w.enemyOrder() {
		e, ok := w.Enemies[id]
		if !ok || visited[id] {
			continue
		}
		visited[id] = true

		if w.Tick >= e.NextMoveAt {
			e.NextMoveAt = w.Tick + w.between(w.Rules.EnemyMoveMin, w.Rules.EnemyMoveMax)
			dir := Directions[w.rng.Intn(len(Directions))]
			results = append(results, w.MoveTank(&e.Tank, dir))
		}

		if w.Started() && w.Tick >= e.NextFireAt {
			e.NextFireAt = w.Tick + w.between(w.Rules.EnemyFireMin, w.Rules.EnemyFireMax)
			if w.rng.Intn(2) == 0 && !e.Firing {
				w.Fire(&e.Tank)
			}
		}

		if res, ok := w.stepBullet(&e.Tank); ok {
			results = append(results, res)
		}
	}
	return results
}

// deployReinforcement brings one reserve enemy onto a random free spawn
// marker when the spawn interval comes round
func (w *World) deployReinforcement() {
	if w.Reserve <= 0 || w.Over() || w.Tick == 0 || !w.due(w.Rules.SpawnInterval) {
		return
	}
	var free []Position
	for _, pos := range w.EnemySpawns {
		if w.Grid.IsEmpty(pos.X, pos.Y) && w.Grid.Overlay(pos.X, pos.Y) == nil {
			free = append(free, pos)
		}
	}
	if len(free) == 0 {
		return
	}
	pos := free[w.rng.Intn(len(free))]
	if _, err := w.PlaceEnemy(pos, Up, w.rollVariant()); err != nil {
		return
	}
	w.Reserve--
	w.emit(EventReinforce, pos, w.nextEnemy-1, KindEnemyTank)
}
