package engine

import "testing"

func TestFire_OneBulletPerTank(t *testing.T) {
	w := newTestWorld(5, 3)
	p := mustPlayer(t, w, 0, 1, Right)

	if !w.Fire(p) {
		t.Fatal("Expected the first shot to fire")
	}
	if !p.Firing || !p.Bullet.Firing {
		t.Error("Expected the tank and its bullet to be firing")
	}
	if p.Bullet.Pos != p.Pos || p.Bullet.Dir != p.Dir || p.Bullet.Owner != PlayerID {
		t.Errorf("Expected the bullet synced to the tank pose, got %+v", p.Bullet)
	}
	if w.Fire(p) {
		t.Error("A tank with a bullet in flight must not fire again")
	}

	events := w.DrainEvents()
	if len(events) != 1 || events[0].Type != EventFire {
		t.Errorf("Expected a single fire event, got %+v", events)
	}
}

func TestStepBullet_Cadence(t *testing.T) {
	w := NewWorld(6, 3, DefaultRules())
	p := mustPlayer(t, w, 0, 1, Right)
	w.Fire(p)

	w.Tick = 3
	if _, stepped := w.stepBullet(p); stepped {
		t.Error("Bullet must not step off its cadence")
	}
	w.Tick = 5
	res, stepped := w.stepBullet(p)
	if !stepped || res.Outcome != OutcomeAdvanced {
		t.Errorf("Expected the bullet to advance on tick 5, got %v %s", stepped, res.Outcome)
	}
}

func TestGhostBullet_KeepsFlyingAfterOwnerDies(t *testing.T) {
	w := newTestWorld(6, 3)
	e := mustEnemy(t, w, 1, 1, Right)

	w.Fire(&e.Tank)
	w.AdvanceBullet(&e.Tank)
	e.HP = 0
	w.sweepDestroyed()

	if w.Alive(e.ID) {
		t.Fatal("Expected the enemy to be destroyed")
	}
	ghosts := w.GhostBullets()
	if len(ghosts) != 1 || ghosts[0].Owner != e.ID {
		t.Fatalf("Expected one ghost bullet owned by %s, got %d", e.ID.Label(), len(ghosts))
	}

	results := w.sweepGhosts()
	if len(results) != 1 || results[0].Outcome != OutcomeAdvanced {
		t.Fatalf("Expected the ghost to advance once, got %+v", results)
	}
	if _, ok := w.Grid.Get(3, 1).(*Bullet); !ok {
		t.Error("Expected the ghost bullet at (3,1)")
	}
	if !w.Grid.IsEmpty(2, 1) {
		t.Error("Expected the ghost's previous cell to be cleared")
	}
	checkInvariants(t, w)
}

func TestGhostBullet_HitsPlayer(t *testing.T) {
	w := newTestWorld(5, 3)
	p := mustPlayer(t, w, 3, 1, Left)
	ghost := &Bullet{Pos: Position{X: 2, Y: 1}, Dir: Right, Firing: true, Owner: 12}
	w.Grid.Set(2, 1, ghost)

	results := w.sweepGhosts()
	if len(results) != 1 || results[0].Outcome != OutcomeDamaged {
		t.Fatalf("Expected the ghost to damage the player, got %+v", results)
	}
	if p.HP != 0 {
		t.Errorf("Expected player hp 0, got %d", p.HP)
	}
	if ghost.Firing {
		t.Error("Expected the ghost to stop firing")
	}
}

func TestGhostSweep_VisitsEachOwnerOnce(t *testing.T) {
	w := newTestWorld(5, 3)
	w.Grid.Set(0, 0, &Bullet{Pos: Position{X: 0, Y: 0}, Dir: Right, Firing: true, Owner: 50})
	w.Grid.Set(0, 2, &Bullet{Pos: Position{X: 0, Y: 2}, Dir: Right, Firing: true, Owner: 50})

	results := w.sweepGhosts()
	if len(results) != 1 {
		t.Fatalf("Expected one advance for owner 50, got %d", len(results))
	}
	if results[0].To != (Position{X: 1, Y: 0}) {
		t.Errorf("Expected the first ghost in row-major order to move, got %v", results[0].To)
	}

	// The set is rebuilt every pass
	if results = w.sweepGhosts(); len(results) != 1 {
		t.Errorf("Expected the next pass to advance again, got %d", len(results))
	}
}

func TestGhostSweep_RespectsCadence(t *testing.T) {
	w := NewWorld(5, 3, DefaultRules())
	w.Place(1, 1, &Water{})
	ghost := &Bullet{Pos: Position{X: 1, Y: 1}, Dir: Right, Firing: true, Owner: 8}
	w.Grid.SetOverlay(1, 1, ghost)

	w.Tick = 5
	if results := w.sweepGhosts(); len(results) != 0 {
		t.Errorf("An enemy bullet on water must wait for the water cadence, got %d steps", len(results))
	}
	w.Tick = 20
	if results := w.sweepGhosts(); len(results) != 1 {
		t.Errorf("Expected the ghost to leave the water on tick 20, got %d steps", len(results))
	}
	if w.Grid.Overlay(1, 1) != nil {
		t.Error("Expected the overlay above the water to be cleared")
	}
}

func TestGhostBullet_RespawnedPlayerOrphansOldBullet(t *testing.T) {
	w := newTestWorld(5, 3)
	w.Lives = 2
	w.PlayerSpawn = Position{X: 0, Y: 1}
	p := mustPlayer(t, w, 0, 1, Right)

	w.Fire(p)
	w.AdvanceBullet(p)
	p.HP = 0
	w.sweepDestroyed()
	if !w.Respawn() {
		t.Fatal("Expected the player to respawn")
	}

	ghosts := w.GhostBullets()
	if len(ghosts) != 1 || ghosts[0].Owner != PlayerID {
		t.Fatalf("Expected the old bullet to be a ghost, got %d ghosts", len(ghosts))
	}
	if w.Player.Firing {
		t.Error("The respawned tank starts without a bullet in flight")
	}
}
