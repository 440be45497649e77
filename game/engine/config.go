package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Level file cell codes
const (
	CodeEmpty       = 0
	CodePlayerSpawn = 1
	CodeEnemySpawn  = 2
	CodeHomeBase    = 3
	CodeStone       = 4
	CodeBrick       = 5
	CodeMirrorNE    = 6
	CodeMirrorSE    = 7
	CodeWater       = 8
	CodeForest      = 9
)

// Validation constants
const (
	MinGridSize   = 3
	MaxGridSize   = 64
	MaxEnemies    = 99
	MaxStepTicks  = 600
	BrickHP       = 2
	HomeBaseHP    = 1
	PlayerHP      = 1
	RegularHP     = 1
	BuffHP        = 2
	DefaultTPS    = 60
	DefaultBounce = 16
)

// Rules holds the tunable constants of the simulation
type Rules struct {
	// BulletCadence is the number of ticks between steps of a bullet in flight
	BulletCadence int `json:"bullet_cadence"`
	// WaterCadencePlayer and WaterCadenceEnemy replace BulletCadence while a
	// bullet sits on water
	WaterCadencePlayer int `json:"water_cadence_player"`
	WaterCadenceEnemy  int `json:"water_cadence_enemy"`
	PlayerMoveCadence  int `json:"player_move_cadence"`

	// AI schedule bounds, inclusive
	EnemyMoveMin int `json:"enemy_move_min"`
	EnemyMoveMax int `json:"enemy_move_max"`
	EnemyFireMin int `json:"enemy_fire_min"`
	EnemyFireMax int `json:"enemy_fire_max"`

	StartDelay    int     `json:"start_delay"`
	SettleDelay   int     `json:"settle_delay"`
	SpawnInterval int     `json:"spawn_interval"`
	MaxBounces    int     `json:"max_bounces"`
	Lives         int     `json:"lives"`
	BuffChance    float64 `json:"buff_chance"`

	PlayerSelfImmune bool `json:"player_self_immune"`

	// Seed for the world's random source. Zero picks a time based seed.
	Seed int64 `json:"seed"`
}

// DefaultRules returns the standard rule set
func DefaultRules() Rules {
	return Rules{
		BulletCadence:      5,
		WaterCadencePlayer: 5,
		WaterCadenceEnemy:  20,
		PlayerMoveCadence:  4,
		EnemyMoveMin:       50,
		EnemyMoveMax:       100,
		EnemyFireMin:       30,
		EnemyFireMax:       50,
		StartDelay:         200,
		SettleDelay:        180,
		SpawnInterval:      180,
		MaxBounces:         DefaultBounce,
		Lives:              1,
		BuffChance:         1.0 / 3.0,
	}
}

// Validate checks that every cadence and bound is usable
func (r Rules) Validate() error {
	positive := map[string]int{
		"bullet_cadence":       r.BulletCadence,
		"water_cadence_player": r.WaterCadencePlayer,
		"water_cadence_enemy":  r.WaterCadenceEnemy,
		"player_move_cadence":  r.PlayerMoveCadence,
		"enemy_move_min":       r.EnemyMoveMin,
		"enemy_fire_min":       r.EnemyFireMin,
		"spawn_interval":       r.SpawnInterval,
		"lives":                r.Lives,
	}
	for name, v := range positive {
		if v < 1 {
			return fmt.Errorf("rules validation: %s must be at least 1, got %d", name, v)
		}
	}
	if r.EnemyMoveMax < r.EnemyMoveMin {
		return fmt.Errorf("rules validation: enemy_move_max (%d) is below enemy_move_min (%d)", r.EnemyMoveMax, r.EnemyMoveMin)
	}
	if r.EnemyFireMax < r.EnemyFireMin {
		return fmt.Errorf("rules validation: enemy_fire_max (%d) is below enemy_fire_min (%d)", r.EnemyFireMax, r.EnemyFireMin)
	}
	if r.StartDelay < 0 || r.SettleDelay < 0 {
		return fmt.Errorf("rules validation: start_delay and settle_delay must not be negative")
	}
	if r.MaxBounces < 0 {
		return fmt.Errorf("rules validation: max_bounces must not be negative, got %d", r.MaxBounces)
	}
	if r.BuffChance < 0 || r.BuffChance > 1 {
		return fmt.Errorf("rules validation: buff_chance must be within [0,1], got %v", r.BuffChance)
	}
	return nil
}

// LevelConfig is a level document
type LevelConfig struct {
	Level       int     `json:"level"`
	StageName   string  `json:"stage_name"`
	Tutorial    int     `json:"tutorial"`
	EnemyCount  int     `json:"enemy_count"`
	PowerupReq  int     `json:"powerup_req"`
	Map         [][]int `json:"map"`
	Rules       *Rules  `json:"rules,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Width returns the number of columns of the map
func (c *LevelConfig) Width() int {
	if len(c.Map) == 0 {
		return 0
	}
	return len(c.Map[0])
}

// Height returns the number of rows of the map
func (c *LevelConfig) Height() int {
	return len(c.Map)
}

// EffectiveRules returns the level's rules, or the defaults when none are set
func (c *LevelConfig) EffectiveRules() Rules {
	if c == nil || c.Rules == nil {
		return DefaultRules()
	}
	return *c.Rules
}

// CountCode counts the cells of the map holding code
func (c *LevelConfig) CountCode(code int) int {
	n := 0
	for _, row := range c.Map {
		for _, v := range row {
			if v == code {
				n++
			}
		}
	}
	return n
}

// ValidateLevelConfig validates a level for correctness and playability
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return fmt.Errorf("level validation: level is nil")
	}
	if config.Level < 1 {
		return fmt.Errorf("level validation: level must be at least 1, got %d", config.Level)
	}
	if strings.TrimSpace(config.StageName) == "" {
		return fmt.Errorf("level validation: stage_name is required")
	}

	height := config.Height()
	if height < MinGridSize || height > MaxGridSize {
		return fmt.Errorf("level validation: map must have between %d and %d rows, got %d", MinGridSize, MaxGridSize, height)
	}
	width := config.Width()
	if width < MinGridSize || width > MaxGridSize {
		return fmt.Errorf("level validation: map must have between %d and %d columns, got %d", MinGridSize, MaxGridSize, width)
	}

	players := 0
	spawns := 0
	for y, row := range config.Map {
		if len(row) != width {
			return fmt.Errorf("level validation: row %d must have %d cells, got %d", y+1, width, len(row))
		}
		for x, code := range row {
			switch code {
			case CodeEmpty, CodeHomeBase, CodeStone, CodeBrick, CodeMirrorNE, CodeMirrorSE, CodeWater, CodeForest:
			case CodePlayerSpawn:
				players++
			case CodeEnemySpawn:
				spawns++
			default:
				return fmt.Errorf("level validation: invalid code %d at row %d, col %d", code, y+1, x+1)
			}
		}
	}

	if players != 1 {
		return fmt.Errorf("level validation: map must contain exactly one player spawn (1), got %d", players)
	}
	if config.EnemyCount < 0 || config.EnemyCount > MaxEnemies {
		return fmt.Errorf("level validation: enemy_count must be between 0 and %d, got %d", MaxEnemies, config.EnemyCount)
	}
	if config.EnemyCount > 0 && spawns == 0 {
		return fmt.Errorf("level validation: enemy_count is %d but the map has no enemy spawn point (2)", config.EnemyCount)
	}
	if config.PowerupReq < 0 {
		return fmt.Errorf("level validation: powerup_req must not be negative, got %d", config.PowerupReq)
	}
	if config.Rules != nil {
		if err := config.Rules.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ParseLevelConfig decodes and validates a level document
func ParseLevelConfig(data []byte) (*LevelConfig, error) {
	var config LevelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse level: %w", err)
	}
	if config.Rules != nil {
		// Unset fields in a partial rules block keep their defaults
		merged := DefaultRules()
		if err := json.Unmarshal(rulesBlock(data), &merged); err != nil {
			return nil, fmt.Errorf("failed to parse level rules: %w", err)
		}
		config.Rules = &merged
	}
	if err := ValidateLevelConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// rulesBlock extracts the raw "rules" object of a level document
func rulesBlock(data []byte) []byte {
	var raw struct {
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || len(raw.Rules) == 0 {
		return []byte("{}")
	}
	return raw.Rules
}

// LoadLevelConfig loads a level from a JSON file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config, err := ParseLevelConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	return config, nil
}
