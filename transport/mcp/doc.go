// Package mcp exposes the Battle City server to AI agents over the Model
// Context Protocol.
//
// Client is a thin proxy: every tool call becomes one REST request against a
// running server, and the JSON reply is rendered as text for the agent.
//
// MCP Tools:
//   - create_session, list_sessions, get_session
//   - view: grid and HUD as glyph rows
//   - step: play ticks with a direction, fire and restart
//   - set_input: the input a real-time runner keeps playing
//   - restart: continue a settled stage or replay the current one
//   - start_runner, stop_runner
//   - list_levels, describe_cell, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
