// Package websocket streams game views to browsers and other watchers.
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection gets a read goroutine and a
// write goroutine; the Hub's Run loop serializes registration and broadcasts.
//
// Message Protocol:
//
// Clients only listen. Every message has the shape
//
//	{"session_id": "ab12", "event": "view", "view": {...}, "events": [...]}
//
// and is sent as a JSON text frame, or as a msgpack binary frame with the
// same field names when the client connects with ?format=msgpack.
//
// Session Integration:
//
// Clients pick the session they watch when connecting (the API mounts the
// hub at /ws?session=ab12). Updates are broadcast only to clients of the same
// session. Runners publish every tick; a step or restart through the REST API
// publishes once.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	hub.BroadcastToSession(id, view, events)
package websocket
