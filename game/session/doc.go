// Package session provides session management for the Battle City server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Short session ID generation
//   - Real-time tick runners
//   - File persistence of session progress
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Runner steps one session at a fixed tick rate on a time.Ticker, playing
// the session's held input and reporting every tick to an optional callback.
// FilePersistence stores each session as a small JSON record.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. IDs are matched
// case-insensitively.
//
// Persistence:
//
// Worlds are not serialized. A record keeps the starting level, the campaign
// index reached, the lives left and the run id; loading it rebuilds the
// World at the start of that level, the same way a restart would.
//
// Usage:
//
//	manager := session.NewManager(service.LevelEngineFactory(levels, logger.Log))
//
//	sess, err := manager.Create("", "01-intro")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = manager.StartRunner(sess.ID, 60, func(id string, events []engine.Event, view engine.View) {
//		hub.BroadcastToSession(id, view, events)
//	})
package session
