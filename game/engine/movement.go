package engine

// Outcome is the result class of one resolution
type Outcome string

const (
	// OutcomeAdvanced: the actor moved into the target cell
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeBlocked: a tank could not move and turned to face the target
	OutcomeBlocked Outcome = "blocked"
	// OutcomeDamaged: a bullet struck a tank or brick and was removed
	OutcomeDamaged Outcome = "damaged"
	// OutcomePassed: a bullet moved onto the overlay above water or a tank
	OutcomePassed Outcome = "passed"
	// OutcomeCollided: two bullets met and both were removed
	OutcomeCollided Outcome = "collided"
	// OutcomeDestroyed: a bullet was removed without dealing damage
	OutcomeDestroyed Outcome = "destroyed"
	// OutcomeSkipped: nothing to resolve
	OutcomeSkipped Outcome = "skipped"
)

// StepResult describes what one attempted step did
type StepResult struct {
	Outcome Outcome   `json:"outcome"`
	Role    Role      `json:"role"`
	From    Position  `json:"from"`
	To      Position  `json:"to"`
	Dir     Direction `json:"dir"`
	Bounces int       `json:"bounces,omitempty"`
	Target  CellKind  `json:"target"`
}

// Moved reports whether the actor ended up in a new cell
func (r StepResult) Moved() bool {
	return r.Outcome == OutcomeAdvanced || r.Outcome == OutcomePassed
}

// Reflect returns the outgoing direction of a bullet entering a mirror
func Reflect(in Direction, o Orientation) Direction {
	switch o {
	case NE:
		switch in {
		case Left:
			return Down
		case Right:
			return Up
		case Up:
			return Right
		case Down:
			return Left
		}
	case SE:
		switch in {
		case Left:
			return Up
		case Right:
			return Down
		case Up:
			return Left
		case Down:
			return Right
		}
	}
	return in
}

// MoveTank attempts one step of t in direction dir. Blocked tanks turn to
// face dir without moving.
func (w *World) MoveTank(t *Tank, dir Direction) StepResult {
	role := RolePlayer
	if t.ID != PlayerID {
		role = RoleEnemy
	}
	res := StepResult{Role: role, From: t.Pos, To: t.Pos, Dir: dir, Outcome: OutcomeSkipped}
	if !dir.Valid() || !w.holdsTank(t) {
		return res
	}

	target := t.Pos.Step(dir)
	res.To = target
	if !w.Grid.InBounds(target.X, target.Y) {
		t.Dir = dir
		res.Outcome = OutcomeBlocked
		res.Target = KindStone
		return res
	}

	c := w.Grid.At(target)
	res.Target = KindOf(c)
	switch c.(type) {
	case nil:
		origin := t.Pos
		w.Grid.Set(target.X, target.Y, w.Grid.At(origin))
		w.Grid.Clear(origin.X, origin.Y)
		t.Pos = target
		t.Dir = dir
		w.promoteOverlay(origin)
		res.Outcome = OutcomeAdvanced
	case *Stone, *Brick, *Mirror, *Water, *Tank, *EnemyTank, *Bullet:
		t.Dir = dir
		res.Outcome = OutcomeBlocked
	}
	return res
}

// holdsTank reports whether the primary cell at t.Pos is t itself
func (w *World) holdsTank(t *Tank) bool {
	switch c := w.Grid.At(t.Pos).(type) {
	case *Tank:
		return c == t
	case *EnemyTank:
		return &c.Tank == t
	}
	return false
}

// projectile is a bullet under resolution together with whoever answers for it
type projectile struct {
	owner TankID
	// firer is the live tank whose slot drives the bullet
	firer *Tank
	// ghost is the grid bullet being advanced after its owner died
	ghost *Bullet
}

// stop clears the firing state behind the projectile
func (p projectile) stop() {
	if p.firer != nil {
		p.firer.disarm()
	}
	if p.ghost != nil {
		p.ghost.Firing = false
	}
}

// AdvanceBullet moves t's bullet one step
func (w *World) AdvanceBullet(t *Tank) StepResult {
	if t == nil || !t.Firing || !t.Bullet.Firing {
		return StepResult{Role: RoleBullet, Outcome: OutcomeSkipped}
	}
	return w.resolveBullet(projectile{owner: t.ID, firer: t}, t.Bullet.Pos, t.Bullet.Dir)
}

// advanceGhost moves a bullet whose owner is no longer on the grid
func (w *World) advanceGhost(b *Bullet) StepResult {
	if !b.Firing {
		return StepResult{Role: RoleBullet, Outcome: OutcomeSkipped}
	}
	return w.resolveBullet(projectile{owner: b.Owner, ghost: b}, b.Pos, b.Dir)
}

// resolveBullet runs the bullet state machine from origin in direction dir.
// Reflections continue the loop from the mirror's cell until the bullet
// advances, is stopped, or exceeds the bounce cap.
func (w *World) resolveBullet(p projectile, origin Position, dir Direction) StepResult {
	res := StepResult{Role: RoleBullet, From: origin, To: origin, Dir: dir, Outcome: OutcomeSkipped}
	if !w.Grid.InBounds(origin.X, origin.Y) || !dir.Valid() {
		return res
	}

	base := origin
	for {
		target := base.Step(dir)
		res.To = target
		res.Dir = dir

		if !w.Grid.InBounds(target.X, target.Y) {
			res.Target = KindStone
			w.removeBullet(p, origin)
			res.Outcome = OutcomeDestroyed
			return res
		}

		c := w.Grid.At(target)
		res.Target = KindOf(c)
		switch c := c.(type) {
		case nil:
			if other := w.Grid.Overlay(target.X, target.Y); other != nil && !ownBullet(p, origin, target, other) {
				res.Outcome = w.clash(p, origin, other, target, true)
				return res
			}
			w.placeBullet(p, origin, target, dir, false)
			res.Outcome = OutcomeAdvanced
			return res

		case *Stone:
			w.removeBullet(p, origin)
			res.Outcome = OutcomeDestroyed
			return res

		case *Brick:
			c.HP--
			w.emit(EventHit, target, p.owner, c.Kind())
			w.removeBullet(p, origin)
			res.Outcome = OutcomeDamaged
			return res

		case *Mirror:
			res.Bounces++
			if res.Bounces > w.Rules.MaxBounces {
				w.removeBullet(p, origin)
				res.Outcome = OutcomeDestroyed
				return res
			}
			dir = Reflect(dir, c.Orientation)
			base = target

		case *Water:
			res.Outcome = w.crossOverlay(p, origin, target, dir)
			return res

		case *Tank:
			if p.owner == PlayerID && w.Rules.PlayerSelfImmune {
				res.Outcome = w.crossOverlay(p, origin, target, dir)
				return res
			}
			c.HP--
			w.emit(EventHit, target, p.owner, KindTank)
			w.removeBullet(p, origin)
			res.Outcome = OutcomeDamaged
			return res

		case *EnemyTank:
			if p.owner == PlayerID {
				c.HP--
				w.emit(EventHit, target, p.owner, KindEnemyTank)
				w.removeBullet(p, origin)
				res.Outcome = OutcomeDamaged
				return res
			}
			// Enemy bullets never hurt enemy tanks, their own included
			res.Outcome = w.crossOverlay(p, origin, target, dir)
			return res

		case *Bullet:
			if ownBullet(p, origin, target, c) {
				// A reflection chain brought the bullet back onto its own cell
				w.placeBullet(p, origin, target, dir, false)
				res.Outcome = OutcomeAdvanced
				return res
			}
			res.Outcome = w.clash(p, origin, c, target, false)
			return res
		}
	}
}

// crossOverlay moves the bullet onto the overlay above target, unless
// another bullet already occupies that overlay cell
func (w *World) crossOverlay(p projectile, origin, target Position, dir Direction) Outcome {
	if other := w.Grid.Overlay(target.X, target.Y); other != nil && !ownBullet(p, origin, target, other) {
		return w.clash(p, origin, other, target, true)
	}
	w.placeBullet(p, origin, target, dir, true)
	return OutcomePassed
}

// ownBullet reports whether other is the projectile's own pre-step bullet,
// which only happens when reflections lead back to origin. Any other bullet
// at target clashes, whoever fired it.
func ownBullet(p projectile, origin, target Position, other *Bullet) bool {
	return target == origin && other.Owner == p.owner
}

// placeBullet lifts the bullet from origin and materializes it at target
func (w *World) placeBullet(p projectile, origin, target Position, dir Direction, overlay bool) {
	w.liftBullet(p.owner, origin)
	b := &Bullet{Pos: target, Dir: dir, Firing: true, Owner: p.owner}
	if overlay {
		w.Grid.SetOverlay(target.X, target.Y, b)
	} else {
		w.Grid.Set(target.X, target.Y, b)
	}
	if p.firer != nil {
		p.firer.Bullet.Pos = target
		p.firer.Bullet.Dir = dir
	}
	if p.ghost != nil {
		p.ghost.Pos = target
		p.ghost.Dir = dir
	}
}

// liftBullet clears owner's bullet from either layer at pos. The primary
// cell is only cleared when it holds that bullet, so a bullet fired on the
// same tick never erases its firer.
func (w *World) liftBullet(owner TankID, pos Position) {
	if b, ok := w.Grid.At(pos).(*Bullet); ok && b.Owner == owner {
		w.Grid.Clear(pos.X, pos.Y)
	}
	if b := w.Grid.Overlay(pos.X, pos.Y); b != nil && b.Owner == owner {
		w.Grid.ClearOverlay(pos.X, pos.Y)
	}
}

// removeBullet takes the bullet off the grid and stops its firer
func (w *World) removeBullet(p projectile, origin Position) {
	w.liftBullet(p.owner, origin)
	p.stop()
}

// clash destroys both the moving bullet and the bullet it ran into, and
// clears the firing state of both owners
func (w *World) clash(p projectile, origin Position, other *Bullet, at Position, overlay bool) Outcome {
	if overlay {
		w.Grid.ClearOverlay(at.X, at.Y)
	} else {
		w.Grid.Clear(at.X, at.Y)
	}
	if !w.orphaned(other) {
		w.owner(other.Owner).disarm()
	}
	other.Firing = false
	w.removeBullet(p, origin)
	w.emit(EventBulletClash, at, p.owner, KindBullet)
	return OutcomeCollided
}

// promoteOverlay moves an overlay bullet down to the primary layer once the
// cell under it has been vacated
func (w *World) promoteOverlay(pos Position) {
	b := w.Grid.Overlay(pos.X, pos.Y)
	if b == nil || !w.Grid.IsEmpty(pos.X, pos.Y) {
		return
	}
	w.Grid.ClearOverlay(pos.X, pos.Y)
	w.Grid.Set(pos.X, pos.Y, b)
}
