package engine

// Fire arms t's bullet from the tank's current pose. It returns false when
// the tank already has a bullet in flight.
func (w *World) Fire(t *Tank) bool {
	if t == nil || t.Firing || !w.holdsTank(t) {
		return false
	}
	t.arm()
	w.emit(EventFire, t.Pos, t.ID, KindBullet)
	return true
}

// bulletCadence returns how many ticks a bullet of owner waits between steps
// while sitting at pos
func (w *World) bulletCadence(owner TankID, pos Position) int {
	if _, ok := w.Grid.At(pos).(*Water); ok {
		if owner == PlayerID {
			return w.Rules.WaterCadencePlayer
		}
		return w.Rules.WaterCadenceEnemy
	}
	return w.Rules.BulletCadence
}

// stepBullet advances t's bullet when its cadence falls on this tick
func (w *World) stepBullet(t *Tank) (StepResult, bool) {
	if t == nil || !t.Firing || !t.Bullet.Firing {
		return StepResult{}, false
	}
	if !w.due(w.bulletCadence(t.ID, t.Bullet.Pos)) {
		return StepResult{}, false
	}
	return w.AdvanceBullet(t), true
}

// orphaned reports whether no live tank is driving b. That covers a dead
// owner, and a respawned player whose new tank did not fire b.
func (w *World) orphaned(b *Bullet) bool {
	o := w.owner(b.Owner)
	return o == nil || !o.Firing || o.Bullet.Pos != b.Pos
}

// GhostBullets returns the firing bullets on either layer that no live tank
// drives, primary layer first, each in row-major order
func (w *World) GhostBullets() []*Bullet {
	var ghosts []*Bullet
	w.Grid.Each(func(_, _ int, c Cell) {
		if b, ok := c.(*Bullet); ok && b.Firing && w.orphaned(b) {
			ghosts = append(ghosts, b)
		}
	})
	w.Grid.EachOverlay(func(_, _ int, b *Bullet) {
		if b.Firing && w.orphaned(b) {
			ghosts = append(ghosts, b)
		}
	})
	return ghosts
}

// sweepGhosts advances every ghost bullet at most once. The visited set
// lives for this pass only.
func (w *World) sweepGhosts() []StepResult {
	var results []StepResult
	visited := make(map[TankID]bool)
	for _, b := range w.GhostBullets() {
		if visited[b.Owner] || !b.Firing {
			continue
		}
		visited[b.Owner] = true
		if !w.due(w.bulletCadence(b.Owner, b.Pos)) {
			continue
		}
		results = append(results, w.advanceGhost(b))
	}
	return results
}
