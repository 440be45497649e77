// Package service provides the business logic layer for the Battle City server.
//
// The service package implements:
//   - Multi-session game management
//   - Manual stepping and real-time tick runners
//   - Held input for real-time play
//   - Level listing, loading and saving
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, runners and persistence.
// ConfigManager manages level loading and doubles as the campaign source.
//
// Architecture:
//
// The service layer sits between the transports (HTTP/WebSocket/MCP) and the
// engine. Each Session owns one engine and serializes every access to it
// behind its own lock, so a tick runner and request handlers never step the
// same World at the same time.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	sessions := session.NewManager(service.LevelEngineFactory(levels, logger.Log))
//	gameService := service.NewGameService(sessions, levels)
//
//	info, err := gameService.CreateSession(ctx, "01-intro")
//	result, err := gameService.Step(ctx, info.ID, engine.Input{Fire: true}, 10)
package service
