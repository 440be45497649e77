// Package api provides the HTTP REST API of the Battle City server.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session, body {"level_id": "01-intro"} (optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/view - Current view (?format=text for glyph rows)
//   - POST /api/sessions/{id}/input - Set the held input {"direction","fire","restart"}
//   - POST /api/sessions/{id}/step - Play ticks {"direction","fire","restart","ticks"}
//   - POST /api/sessions/{id}/restart - Continue a settled run or replay the level
//   - GET /api/sessions/{id}/cells/{x}/{y} - Describe one cell
//
// Real-time Play:
//   - POST /api/sessions/{id}/run - Start a runner {"rate": 60}
//   - DELETE /api/sessions/{id}/run - Stop it
//
// Levels:
//   - GET /api/levels - List the campaign
//   - GET /api/levels/{name} - Get a level
//   - POST /api/levels - Save a level {"level_id", "level"}
//
// Streaming:
//   - GET /ws?session={id} - WebSocket feed of views and events
//
// Error Handling:
//
// Errors are returned as JSON with the HTTP status derived from the error:
//
//	{
//	  "error": "session zzzz: session not found",
//	  "code": 404
//	}
//
// Unknown sessions and levels are 404, bad input and invalid levels 400,
// and runner conflicts 409.
package api
