package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/game/service"
	"github.com/wricardo/battlecity/logger"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidLevel  = errors.New("invalid level")
)

// Manager handles level loading and caching. The campaign is every level
// file of the directory in filename order.
type Manager struct {
	levelDir     string
	defaultLevel *engine.LevelConfig
	levels       map[string]*engine.LevelConfig
	log          logrus.FieldLogger
	mu           sync.RWMutex
}

// NewManager creates a new level manager
func NewManager(levelDir string) (*Manager, error) {
	if _, err := os.Stat(levelDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("level directory does not exist: %s", levelDir)
	}

	m := &Manager{
		levelDir: levelDir,
		levels:   make(map[string]*engine.LevelConfig),
		log:      logger.Log.WithField("component", "levels"),
	}

	if err := m.loadDefaultLevel(); err != nil {
		return nil, fmt.Errorf("failed to load default level: %w", err)
	}

	return m, nil
}

// levelID strips the .json extension from a level name
func levelID(name string) string {
	return strings.TrimSuffix(name, ".json")
}

// LoadLevel loads a level by name
func (m *Manager) LoadLevel(name string) (*engine.LevelConfig, error) {
	id := levelID(name)

	m.mu.RLock()
	if config, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.levels[id]; exists {
		return config, nil
	}

	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, ErrLevelNotFound
	}

	data, err := os.ReadFile(filepath.Join(m.levelDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrLevelNotFound
		}
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}

	config, err := engine.ParseLevelConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLevel, id, err)
	}

	m.levels[id] = config
	return config, nil
}

// levelFiles returns the level ids of the directory in filename order
func (m *Manager) levelFiles() ([]string, error) {
	entries, err := os.ReadDir(m.levelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read level directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, levelID(entry.Name()))
	}
	sort.Strings(ids)
	return ids, nil
}

// ListLevels returns information about all valid levels in campaign order
func (m *Manager) ListLevels() ([]*service.LevelInfo, error) {
	ids, err := m.levelFiles()
	if err != nil {
		return nil, err
	}

	levels := make([]*service.LevelInfo, 0, len(ids))
	for i, id := range ids {
		config, err := m.LoadLevel(id)
		if err != nil {
			m.log.WithField("level", id).WithError(err).Debug("skipping invalid level")
			continue
		}

		levels = append(levels, &service.LevelInfo{
			Filename:    id + ".json",
			LevelID:     id,
			Index:       i,
			Level:       config.Level,
			StageName:   config.StageName,
			Description: config.Description,
			Width:       config.Width(),
			Height:      config.Height(),
			EnemyCount:  config.EnemyCount,
			PowerupReq:  config.PowerupReq,
		})
	}

	return levels, nil
}

// LevelCount returns the number of level files in the campaign, valid or not
func (m *Manager) LevelCount() int {
	ids, err := m.levelFiles()
	if err != nil {
		return 0
	}
	return len(ids)
}

// LevelAt loads the level at a campaign index
func (m *Manager) LevelAt(index int) (*engine.LevelConfig, error) {
	ids, err := m.levelFiles()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ids) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrLevelNotFound, index, len(ids))
	}
	return m.LoadLevel(ids[index])
}

// IndexOf returns the campaign index of a level, or -1 when the directory
// has no such file
func (m *Manager) IndexOf(name string) int {
	ids, err := m.levelFiles()
	if err != nil {
		return -1
	}
	id := levelID(name)
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}

// NameAt returns the level id at a campaign index
func (m *Manager) NameAt(index int) string {
	ids, err := m.levelFiles()
	if err != nil || index < 0 || index >= len(ids) {
		return ""
	}
	return ids[index]
}

// GetDefault returns the default level
func (m *Manager) GetDefault() *engine.LevelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultLevel
}

// SetDefault sets the default level by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadLevel(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLevel = config
	return nil
}

// RefreshCache drops every cached level and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.levels = make(map[string]*engine.LevelConfig)
	m.mu.Unlock()

	return m.loadDefaultLevel()
}

// loadDefaultLevel picks the first loadable level of the campaign, or a
// built-in arena when the directory has none
func (m *Manager) loadDefaultLevel() error {
	index, config, err := engine.FirstLoadableLevel(m, 0, m.log)
	if err != nil {
		m.log.WithError(err).Info("no level files found, using the built-in arena")
		config = createMinimalLevel()
	} else {
		m.log.WithFields(logrus.Fields{"level": m.NameAt(index), "index": index}).Debug("default level")
	}

	m.mu.Lock()
	m.defaultLevel = config
	m.mu.Unlock()
	return nil
}

// SaveLevel validates a level and writes it to disk
func (m *Manager) SaveLevel(name string, config *engine.LevelConfig) error {
	id := levelID(name)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: bad level name %q", ErrInvalidLevel, name)
	}
	if err := engine.ValidateLevelConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if config.Rules != nil {
		if err := config.Rules.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.levelDir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	m.mu.Lock()
	m.levels[id] = config
	m.mu.Unlock()

	m.log.WithField("level", id).Info("level saved")
	return nil
}

// createMinimalLevel creates a small valid arena with one enemy
func createMinimalLevel() *engine.LevelConfig {
	return &engine.LevelConfig{
		Level:       1,
		StageName:   "Arena",
		Description: "Built-in arena used when no level files exist",
		EnemyCount:  1,
		PowerupReq:  600,
		Map: [][]int{
			{4, 4, 4, 4, 4, 4, 4},
			{4, 2, 0, 0, 0, 0, 4},
			{4, 0, 5, 0, 5, 0, 4},
			{4, 0, 0, 8, 0, 0, 4},
			{4, 0, 5, 0, 5, 0, 4},
			{4, 0, 0, 3, 0, 1, 4},
			{4, 4, 4, 4, 4, 4, 4},
		},
	}
}
