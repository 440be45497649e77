package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/battlecity/api"
	"github.com/wricardo/battlecity/game/config"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/game/service"
	"github.com/wricardo/battlecity/game/session"
	"github.com/wricardo/battlecity/logger"
)

func sprite(x, y int, kind engine.CellKind) engine.Sprite {
	return engine.Sprite{X: x, Y: y, Kind: kind}
}

func player(x, y int, dir engine.Direction) engine.Sprite {
	s := sprite(x, y, engine.KindTank)
	s.Dir = dir
	return s
}

func view(w, h int, cells ...engine.Sprite) engine.View {
	return engine.View{
		Width:  w,
		Height: h,
		Cells:  cells,
		HUD:    engine.HUD{Started: true, Alive: true, Lives: 1},
	}
}

func TestHunterStrategy(t *testing.T) {
	tests := []struct {
		name string
		view engine.View
		want engine.Input
	}{
		{
			"fires when facing an enemy",
			view(5, 1, player(0, 0, engine.Right), sprite(4, 0, engine.KindEnemyTank)),
			engine.Input{Fire: true},
		},
		{
			"turns towards an enemy in line",
			view(1, 5, player(0, 4, engine.Right), sprite(0, 0, engine.KindEnemyTank)),
			engine.Input{Direction: engine.Up, Fire: true},
		},
		{
			"shoots through bricks",
			view(5, 1, player(0, 0, engine.Right), sprite(2, 0, engine.KindBrick), sprite(4, 0, engine.KindEnemyTank)),
			engine.Input{Fire: true},
		},
		{
			"never shoots across the base",
			view(3, 2,
				player(0, 0, engine.Right), sprite(1, 0, engine.KindHomeBase), sprite(2, 0, engine.KindEnemyTank),
				sprite(0, 1, engine.KindStone), sprite(1, 1, engine.KindStone), sprite(2, 1, engine.KindStone)),
			engine.Input{},
		},
		{
			"drives to a firing spot",
			// Stone blocks the row, the enemy is reachable from column 2
			view(3, 3,
				player(0, 2, engine.Right), sprite(1, 2, engine.KindStone),
				sprite(2, 0, engine.KindEnemyTank), sprite(1, 0, engine.KindStone)),
			engine.Input{Direction: engine.Up},
		},
		{
			"respawns when destroyed",
			view(3, 1, sprite(2, 0, engine.KindEnemyTank)),
			engine.Input{Restart: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (HunterStrategy{}).Next(tt.view); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestHunterStrategy_Idle(t *testing.T) {
	v := view(5, 1, player(0, 0, engine.Right), sprite(4, 0, engine.KindEnemyTank))
	v.HUD.Started = false
	if got := (HunterStrategy{}).Next(v); got != (engine.Input{}) {
		t.Errorf("Expected no input during the countdown, got %+v", got)
	}

	v.HUD.Started = true
	v.HUD.Settled = true
	if got := (HunterStrategy{}).Next(v); got != (engine.Input{}) {
		t.Errorf("Expected no input once settled, got %+v", got)
	}
}

// newBackend serves the real API over a two level campaign of duels with a
// passive enemy
func newBackend(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= 2; i++ {
		rules := engine.DefaultRules()
		rules.StartDelay = 0
		rules.SettleDelay = 3
		rules.BuffChance = 0
		rules.Seed = 1
		rules.EnemyMoveMin, rules.EnemyMoveMax = 1_000_000, 1_000_000
		rules.EnemyFireMin, rules.EnemyFireMax = 1_000_000, 1_000_000
		level := &engine.LevelConfig{
			Level:      i,
			StageName:  fmt.Sprintf("Duel %d", i),
			EnemyCount: 1,
			Rules:      &rules,
			Map: [][]int{
				{4, 4, 4, 4, 4, 4},
				{1, 0, 4, 0, 2, 4},
				{4, 0, 0, 0, 0, 4},
				{4, 4, 4, 4, 4, 4},
			},
		}
		data, err := json.Marshal(level)
		if err != nil {
			t.Fatalf("Failed to marshal level: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%02d-duel.json", i)), data, 0644); err != nil {
			t.Fatalf("Failed to write level: %v", err)
		}
	}

	levels, err := config.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}
	sessions := session.NewManager(service.LevelEngineFactory(levels, logger.Discard()))
	ts := httptest.NewServer(api.NewServer(service.NewGameService(sessions, levels), nil))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestPlay_Campaign(t *testing.T) {
	client := NewClient(newBackend(t) + "/")

	results, err := Play(context.Background(), client, HunterStrategy{}, Options{
		Stages:   2,
		MaxTicks: 2000,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 stages, got %+v", results)
	}
	for i, r := range results {
		if !r.Victory || r.Level != i+1 {
			t.Errorf("Expected stage %d cleared, got %+v", i+1, r)
		}
	}

	var out bytes.Buffer
	printResults(&out, results)
	if !strings.Contains(out.String(), "Stage 2 Duel 2") || !strings.Contains(out.String(), "CLEAR") {
		t.Errorf("Unexpected report:\n%s", out.String())
	}
}

func TestPlay_GivesUp(t *testing.T) {
	client := NewClient(newBackend(t))

	// Standing still never wins
	_, err := Play(context.Background(), client, idle{}, Options{MaxTicks: 40}, logger.Discard())
	if err == nil || !strings.Contains(err.Error(), "not settled") {
		t.Errorf("Expected a give-up error, got %v", err)
	}
}

type idle struct{}

func (idle) Next(engine.View) engine.Input { return engine.Input{} }

func TestClient_Errors(t *testing.T) {
	client := NewClient(newBackend(t))

	if _, err := client.CreateSession(context.Background(), "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got %v", err)
	}

	client.sessionID = "nope"
	if _, err := client.Step(context.Background(), engine.Input{}, 1); err == nil {
		t.Error("Expected error for unknown session")
	}

	if _, err := NewClient("http://127.0.0.1:1").CreateSession(context.Background(), ""); err == nil {
		t.Error("Expected connection error")
	}
}
