package engine

import "testing"

func TestAI_MovesOnSchedule(t *testing.T) {
	rules := testRules()
	rules.EnemyMoveMin = 10
	rules.EnemyMoveMax = 10
	w := NewWorld(5, 5, rules)
	e := mustEnemy(t, w, 2, 2, Up)
	start := e.Pos

	if e.NextMoveAt != 10 {
		t.Fatalf("Expected the first move scheduled for tick 10, got %d", e.NextMoveAt)
	}
	for i := 0; i < 9; i++ {
		w.tick(Input{})
	}
	if e.Pos != start {
		t.Fatalf("Enemy moved before its schedule, now at %v", e.Pos)
	}

	w.tick(Input{})
	if ManhattanDistance(start, e.Pos) != 1 {
		t.Errorf("Expected the enemy one step from %v, got %v", start, e.Pos)
	}
	if start.Step(e.Dir) != e.Pos {
		t.Errorf("Expected the enemy to face its travel direction, faces %s", e.Dir)
	}
	if e.NextMoveAt != 20 {
		t.Errorf("Expected the next move rescheduled for tick 20, got %d", e.NextMoveAt)
	}
	checkInvariants(t, w)
}

func TestAI_HoldsFireDuringStartDelay(t *testing.T) {
	rules := testRules()
	rules.StartDelay = 50
	rules.EnemyFireMin = 1
	rules.EnemyFireMax = 1
	w := NewWorld(5, 5, rules)
	mustEnemy(t, w, 2, 4, Up)

	fired := 0
	for i := 0; i < 50; i++ {
		fired += countEvents(w.tick(Input{}), EventFire)
	}
	if fired != 0 {
		t.Fatalf("Expected no enemy fire before the start delay, got %d shots", fired)
	}

	for i := 0; i < 250; i++ {
		fired += countEvents(w.tick(Input{}), EventFire)
		checkInvariants(t, w)
	}
	if fired == 0 {
		t.Error("Expected the enemy to open fire after the start delay")
	}
}

func TestAI_FiringTankBulletAdvances(t *testing.T) {
	w := newTestWorld(5, 5)
	e := mustEnemy(t, w, 2, 4, Up)

	w.Fire(&e.Tank)
	w.runAI()
	if e.Bullet.Pos != (Position{X: 2, Y: 3}) {
		t.Errorf("Expected the enemy bullet at (2,3), got %v", e.Bullet.Pos)
	}
}

func TestAI_VisitsEnemiesInGridOrder(t *testing.T) {
	w := newTestWorld(5, 5)
	c := mustEnemy(t, w, 0, 3, Up)
	a := mustEnemy(t, w, 4, 0, Up)
	b := mustEnemy(t, w, 1, 2, Up)

	order := w.enemyOrder()
	want := []TankID{a.ID, b.ID, c.ID}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, order)
		}
	}
}

func TestReinforcements(t *testing.T) {
	rules := testRules()
	rules.SpawnInterval = 10
	w := NewWorld(5, 5, rules)
	w.EnemySpawns = []Position{{X: 0, Y: 0}}
	w.Reserve = 2
	w.TotalFoes = 2

	var events []Event
	for i := 0; i < 10; i++ {
		events = append(events, w.tick(Input{})...)
	}
	if w.Remaining != 1 || w.Reserve != 1 {
		t.Fatalf("Expected one deployed and one in reserve, got %d/%d", w.Remaining, w.Reserve)
	}
	if countEvents(events, EventReinforce) != 1 {
		t.Errorf("Expected a reinforce event, got %+v", events)
	}
	if KindOf(w.Grid.Get(0, 0)) != KindEnemyTank {
		t.Error("Expected the reinforcement on the spawn marker")
	}

	// The only marker is occupied, so the next interval deploys nothing
	for i := 0; i < 10; i++ {
		w.tick(Input{})
	}
	if w.Remaining != 1 || w.Reserve != 1 {
		t.Errorf("Expected no deployment onto an occupied marker, got %d/%d", w.Remaining, w.Reserve)
	}
	checkInvariants(t, w)
}
