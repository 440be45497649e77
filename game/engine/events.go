package engine

// EventType classifies notifications emitted for audio and other observers
type EventType string

const (
	EventFire        EventType = "fire"
	EventHit         EventType = "hit"
	EventDestroy     EventType = "destroy"
	EventBulletClash EventType = "bullet_clash"
	EventPowerup     EventType = "powerup"
	EventRespawn     EventType = "respawn"
	EventReinforce   EventType = "reinforce"
	EventGameOver    EventType = "game_over"
	EventVictory     EventType = "victory"
)

// Event is a discrete notification produced during a tick
type Event struct {
	Type  EventType `json:"type"`
	Tick  int       `json:"tick"`
	Pos   Position  `json:"pos"`
	Owner TankID    `json:"owner"`
	Kind  CellKind  `json:"kind,omitempty"`
}

// EventSink receives events as they happen. The audio collaborator
// implements it; the core never plays anything itself.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(Event)

// Emit calls f(e)
func (f EventSinkFunc) Emit(e Event) { f(e) }

// emit records e for the current tick and forwards it to the sink
func (w *World) emit(t EventType, pos Position, owner TankID, kind CellKind) {
	e := Event{Type: t, Tick: w.Tick, Pos: pos, Owner: owner, Kind: kind}
	w.events = append(w.events, e)
	if w.sink != nil {
		w.sink.Emit(e)
	}
}

// DrainEvents returns and forgets the events recorded since the last drain
func (w *World) DrainEvents() []Event {
	events := w.events
	w.events = nil
	return events
}
