package service

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/engine"
)

// EngineFactory builds the engine for a session starting at levelName. An
// empty name starts the campaign from its first loadable level.
type EngineFactory func(levelName string) (*engine.GameEngine, error)

// LevelEngineFactory returns a factory whose engines play the campaign of
// levels, so a settled win moves the session on to the next level file
func LevelEngineFactory(levels ConfigManager, log logrus.FieldLogger) EngineFactory {
	return func(levelName string) (*engine.GameEngine, error) {
		if levelName == "" {
			if levels.LevelCount() > 0 {
				if eng, err := engine.NewEngineFromSource(levels, 0, log); err == nil {
					return eng, nil
				}
			}
			eng, err := engine.NewEngine(levels.GetDefault())
			if err != nil {
				return nil, fmt.Errorf("failed to create engine: %w", err)
			}
			eng.SetLogger(log)
			return eng, nil
		}

		// Load first so a broken level reports its own error instead of
		// being skipped in favour of the next one
		config, err := levels.LoadLevel(levelName)
		if err != nil {
			return nil, err
		}
		if index := levels.IndexOf(levelName); index >= 0 {
			eng, err := engine.NewEngineFromSource(levels, index, log)
			if err != nil {
				return nil, fmt.Errorf("failed to create engine: %w", err)
			}
			return eng, nil
		}
		eng, err := engine.NewEngine(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		eng.SetLogger(log)
		return eng, nil
	}
}
