package service

import (
	"time"

	"github.com/wricardo/battlecity/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string       `json:"id"`
	LevelName      string       `json:"level_name"`
	LevelIndex     int          `json:"level_index"`
	StageName      string       `json:"stage_name"`
	RunID          string       `json:"run_id"`
	Running        bool         `json:"running"`
	Input          engine.Input `json:"input"`
	CreatedAt      time.Time    `json:"created_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
	View           engine.View  `json:"view"`
}

// StepResult contains the outcome of one or more manual ticks
type StepResult struct {
	SessionID string         `json:"session_id"`
	Ticks     int            `json:"ticks"`
	Events    []engine.Event `json:"events"`
	View      engine.View    `json:"view"`
	GameOver  bool           `json:"game_over"`
	Victory   bool           `json:"victory"`
	Settled   bool           `json:"settled"`
}

// LevelInfo provides information about a level file
type LevelInfo struct {
	Filename    string `json:"filename"`
	LevelID     string `json:"level_id"` // The identifier to use for session creation
	Index       int    `json:"index"`    // Position in the campaign
	Level       int    `json:"level"`
	StageName   string `json:"stage_name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	EnemyCount  int    `json:"enemy_count"`
	PowerupReq  int    `json:"powerup_req"`
}

// TickFunc observes the events and resulting view of every tick a runner
// plays for a session
type TickFunc func(sessionID string, events []engine.Event, view engine.View)
