package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/battlecity/game/config"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/game/service"
	"github.com/wricardo/battlecity/game/session"
	"github.com/wricardo/battlecity/logger"
	ws "github.com/wricardo/battlecity/transport/websocket"
)

func duelLevel(level int) *engine.LevelConfig {
	rules := engine.DefaultRules()
	rules.BulletCadence = 1
	rules.PlayerMoveCadence = 1
	rules.EnemyMoveMin, rules.EnemyMoveMax = 1_000_000, 1_000_000
	rules.EnemyFireMin, rules.EnemyFireMax = 1_000_000, 1_000_000
	rules.StartDelay = 0
	rules.SettleDelay = 3
	rules.BuffChance = 0
	rules.Seed = 1
	return &engine.LevelConfig{
		Level:      level,
		StageName:  fmt.Sprintf("Duel %d", level),
		EnemyCount: 1,
		Map: [][]int{
			{4, 4, 4, 4, 4},
			{1, 0, 0, 2, 4},
			{4, 4, 4, 4, 4},
		},
		Rules: &rules,
	}
}

type testEnv struct {
	server   *Server
	hub      *ws.Hub
	sessions *session.Manager
}

// setupTestServer wires the real level, session and service layers over a
// two level campaign in a temp dir
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	for i := 1; i <= 2; i++ {
		data, err := json.Marshal(duelLevel(i))
		if err != nil {
			t.Fatalf("Failed to marshal level: %v", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("%02d-duel.json", i))
		if err := os.WriteFile(name, data, 0644); err != nil {
			t.Fatalf("Failed to write level: %v", err)
		}
	}

	levels, err := config.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}
	sessions := session.NewManager(service.LevelEngineFactory(levels, logger.Discard()))
	t.Cleanup(sessions.StopAll)

	hub := ws.NewHub()
	return &testEnv{
		server:   NewServer(service.NewGameService(sessions, levels), hub),
		hub:      hub,
		sessions: sessions,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	return w
}

func (env *testEnv) createSession(t *testing.T, levelID string) *service.SessionInfo {
	t.Helper()
	w := env.do(t, "POST", "/api/sessions", map[string]string{"level_id": levelID})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	return &info
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestNewServer(t *testing.T) {
	env := setupTestServer(t)

	if env.server.router == nil {
		t.Error("Router not initialized")
	}
	if env.server.service == nil {
		t.Error("Service not set")
	}

	w := env.do(t, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", w.Code)
	}
}

func TestCreateSession(t *testing.T) {
	env := setupTestServer(t)

	t.Run("without a level starts the campaign", func(t *testing.T) {
		info := env.createSession(t, "")
		if info.ID == "" {
			t.Error("Expected a session id")
		}
		if info.LevelIndex != 0 || info.StageName != "Duel 1" {
			t.Errorf("Expected the first duel, got index %d stage %q", info.LevelIndex, info.StageName)
		}
		if info.View.Width != 5 || info.View.Height != 3 {
			t.Errorf("Expected a 5x3 view, got %dx%d", info.View.Width, info.View.Height)
		}
	})

	t.Run("with a level id", func(t *testing.T) {
		info := env.createSession(t, "02-duel")
		if info.LevelIndex != 1 {
			t.Errorf("Expected level index 1, got %d", info.LevelIndex)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/sessions", nil)
		w := httptest.NewRecorder()
		env.server.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Errorf("Expected status 201, got %d", w.Code)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		w := env.do(t, "POST", "/api/sessions", map[string]string{"level_id": "99-nowhere"})
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader("{"))
		w := httptest.NewRecorder()
		env.server.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestSessionEndpoints(t *testing.T) {
	env := setupTestServer(t)
	first := env.createSession(t, "")
	time.Sleep(5 * time.Millisecond)
	second := env.createSession(t, "")

	t.Run("list sorted and limited", func(t *testing.T) {
		w := env.do(t, "GET", "/api/sessions?sort=created&order=asc&limit=1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Count    int                    `json:"count"`
			Total    int                    `json:"total"`
			Sessions []*service.SessionInfo `json:"sessions"`
		}
		decodeJSON(t, w, &resp)
		if resp.Count != 1 || resp.Total != 2 {
			t.Errorf("Expected 1 of 2 sessions, got %d of %d", resp.Count, resp.Total)
		}
		if len(resp.Sessions) != 1 || resp.Sessions[0].ID != first.ID {
			t.Errorf("Expected the oldest session first")
		}
	})

	t.Run("get", func(t *testing.T) {
		w := env.do(t, "GET", "/api/sessions/"+second.ID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var info service.SessionInfo
		decodeJSON(t, w, &info)
		if info.ID != second.ID {
			t.Errorf("Expected %s, got %s", second.ID, info.ID)
		}
	})

	t.Run("get is case-insensitive", func(t *testing.T) {
		w := env.do(t, "GET", "/api/sessions/"+strings.ToUpper(second.ID), nil)
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		w := env.do(t, "GET", "/api/sessions/zzzz", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
		var resp map[string]interface{}
		decodeJSON(t, w, &resp)
		if resp["error"] == nil {
			t.Error("Expected an error message")
		}
	})

	t.Run("delete", func(t *testing.T) {
		w := env.do(t, "DELETE", "/api/sessions/"+first.ID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		w = env.do(t, "GET", "/api/sessions/"+first.ID, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected deleted session to be gone, got %d", w.Code)
		}
		w = env.do(t, "DELETE", "/api/sessions/"+first.ID, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 on second delete, got %d", w.Code)
		}
	})
}

func TestStepAndRestart(t *testing.T) {
	env := setupTestServer(t)
	info := env.createSession(t, "")
	base := "/api/sessions/" + info.ID

	t.Run("bad direction", func(t *testing.T) {
		w := env.do(t, "POST", base+"/step", map[string]interface{}{"direction": "sideways"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("too many ticks", func(t *testing.T) {
		w := env.do(t, "POST", base+"/step", map[string]interface{}{"ticks": engine.MaxStepTicks + 1})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("default is one tick", func(t *testing.T) {
		w := env.do(t, "POST", base+"/step", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var result service.StepResult
		decodeJSON(t, w, &result)
		if result.Ticks != 1 || result.View.HUD.Tick != 1 {
			t.Errorf("Expected one tick, got %d (hud %d)", result.Ticks, result.View.HUD.Tick)
		}
	})

	t.Run("firing wins the duel", func(t *testing.T) {
		w := env.do(t, "POST", base+"/step", map[string]interface{}{"fire": true, "ticks": 12})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var result service.StepResult
		decodeJSON(t, w, &result)
		if !result.Victory || !result.Settled {
			t.Errorf("Expected a settled victory, got %+v", result.View.HUD)
		}
	})

	t.Run("restart moves to the next level", func(t *testing.T) {
		w := env.do(t, "POST", base+"/restart", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			View engine.View `json:"view"`
		}
		decodeJSON(t, w, &resp)
		if resp.View.HUD.Level != 2 {
			t.Errorf("Expected level 2, got %d", resp.View.HUD.Level)
		}
		if resp.View.HUD.Tick != 0 {
			t.Errorf("Expected a fresh world, got tick %d", resp.View.HUD.Tick)
		}
	})

	t.Run("view as text", func(t *testing.T) {
		w := env.do(t, "GET", base+"/view?format=text", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
			t.Errorf("Expected text/plain, got %s", w.Header().Get("Content-Type"))
		}
		if lines := strings.Count(w.Body.String(), "\n"); lines < 3 {
			t.Errorf("Expected the status line and 3 grid rows, got %q", w.Body.String())
		}
	})

	t.Run("view as json", func(t *testing.T) {
		w := env.do(t, "GET", base+"/view", nil)
		var view engine.View
		decodeJSON(t, w, &view)
		if view.Width != 5 {
			t.Errorf("Expected width 5, got %d", view.Width)
		}
	})
}

func TestInputAndCells(t *testing.T) {
	env := setupTestServer(t)
	info := env.createSession(t, "")
	base := "/api/sessions/" + info.ID

	w := env.do(t, "POST", base+"/input", map[string]interface{}{"direction": "right", "fire": true})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, "GET", "/api/sessions/"+info.ID, nil)
	var got service.SessionInfo
	decodeJSON(t, w, &got)
	if got.Input.Direction != engine.Right || !got.Input.Fire {
		t.Errorf("Expected held input right+fire, got %+v", got.Input)
	}

	w = env.do(t, "POST", base+"/input", map[string]interface{}{"direction": "north"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	w = env.do(t, "GET", base+"/cells/0/0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var cell engine.CellInfo
	decodeJSON(t, w, &cell)
	if cell.Kind != engine.KindStone {
		t.Errorf("Expected stone at 0,0, got %s", cell.Kind)
	}

	w = env.do(t, "GET", base+"/cells/9/9", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 off the grid, got %d", w.Code)
	}
	w = env.do(t, "GET", base+"/cells/a/b", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad coordinates, got %d", w.Code)
	}
}

func TestRunnerEndpoints(t *testing.T) {
	env := setupTestServer(t)
	info := env.createSession(t, "")
	base := "/api/sessions/" + info.ID + "/run"

	w := env.do(t, "POST", base, map[string]int{"rate": 1000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a huge rate, got %d", w.Code)
	}

	w = env.do(t, "POST", base, map[string]int{"rate": 100})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, "POST", base, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a second runner, got %d", w.Code)
	}

	time.Sleep(50 * time.Millisecond)

	w = env.do(t, "DELETE", base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/sessions/"+info.ID+"/view", nil)
	var view engine.View
	decodeJSON(t, w, &view)
	if view.HUD.Tick == 0 {
		t.Error("Expected the runner to have played some ticks")
	}

	w = env.do(t, "DELETE", base, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a stopped runner, got %d", w.Code)
	}
}

func TestLevelEndpoints(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/api/levels", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var levels []*service.LevelInfo
	decodeJSON(t, w, &levels)
	if len(levels) != 2 || levels[0].LevelID != "01-duel" {
		t.Errorf("Expected the two duels in order, got %+v", levels)
	}

	w = env.do(t, "GET", "/api/levels/02-duel.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var level engine.LevelConfig
	decodeJSON(t, w, &level)
	if level.Level != 2 {
		t.Errorf("Expected level 2, got %d", level.Level)
	}

	w = env.do(t, "GET", "/api/levels/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/levels", map[string]interface{}{"level_id": "03-duel", "level": duelLevel(3)})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	broken := duelLevel(4)
	broken.Map = [][]int{{0, 0}, {0}}
	w = env.do(t, "POST", "/api/levels", map[string]interface{}{"level_id": "04-broken", "level": broken})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a ragged map, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/levels", map[string]interface{}{"level": duelLevel(5)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without a level id, got %d", w.Code)
	}
}

func TestWebSocketReceivesSteps(t *testing.T) {
	env := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.hub.Run(ctx)

	info := env.createSession(t, "")
	server := httptest.NewServer(env.server)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session=" + info.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for env.hub.ClientCount(info.ID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(server.URL+"/api/sessions/"+info.ID+"/step", "application/json",
		strings.NewReader(`{"fire":true,"ticks":2}`))
	if err != nil {
		t.Fatalf("Step request failed: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var message ws.Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	if message.View == nil || message.View.HUD.Tick != 2 {
		t.Errorf("Expected the view after 2 ticks, got %+v", message.View)
	}
	fired := false
	for _, e := range message.Events {
		fired = fired || e.Type == engine.EventFire
	}
	if !fired {
		t.Errorf("Expected the fire event, got %+v", message.Events)
	}

	// Unknown sessions are refused before the upgrade
	bad := httptest.NewRequest("GET", "/ws?session=zzzz", nil)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, bad)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
