// Package engine provides the simulation core of the Battle City tank game.
//
// The engine package implements:
//   - A two-layer grid: single-occupancy primary cells plus an overlay for
//     bullets crossing water or a friendly tank
//   - Tank movement and bullet ballistics, including mirror reflection
//   - The asymmetric damage rules between player and enemy bullets
//   - Ghost bullets that keep flying after their firer is destroyed
//   - Enemy AI, reinforcements, lives, powerups and the win/loss latches
//   - Level loading and validation
//
// Core Types:
//
// World holds the complete state of one run of a level and is rebuilt from
// a LevelConfig on every restart. Cell is a sealed sum type over Stone,
// Brick, Mirror, Water, Tank, EnemyTank and Bullet; a nil Cell is empty.
// The Engine interface, implemented by GameEngine, runs one tick per Step
// and swaps in a new World on restart.
//
// Usage:
//
//	config, err := engine.LoadLevelConfig("levels/01_first_contact.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	events := gameEngine.Step(engine.Input{Direction: engine.Up, Fire: true})
//	view := gameEngine.View()
//
// Tick Order:
//
// Each tick runs these passes to completion, in order: reinforcement
// deployment, player input, the AI pass, the ghost bullet sweep, the
// lifecycle sweep, the win check and the powerup check. The world is not
// safe for concurrent use; callers serialize access.
package engine
