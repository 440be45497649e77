// Package config provides level management for the Battle City server.
//
// The config package handles:
//   - Loading level documents from JSON files
//   - Caching parsed levels
//   - Default level selection
//   - Campaign ordering and level listing
//
// Level Format:
//
// Levels are stored as JSON files in the levels directory. Each file holds
// the level number, a stage name, the enemy count, the powerup deadline in
// ticks and a map of cell codes (0 empty, 1 player spawn, 2 enemy spawn,
// 3 home base, 4 stone, 5 brick, 6 and 7 mirrors, 8 water, 9 forest).
// An optional "rules" object overrides individual simulation constants.
//
// Campaign:
//
// The campaign is every .json file of the directory in filename order, so
// files are usually prefixed with their position ("01-intro.json"). The
// Manager implements engine.LevelSource over that order; a file that fails
// to load is skipped by the engine rather than ending the campaign.
//
// Usage:
//
//	manager, err := config.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadLevel("01-intro")
//	levels, err := manager.ListLevels()
//	eng, err := engine.NewEngineFromSource(manager, 0, logger.Log)
package config
