// Package audio plays synthesized sound effects for engine events. Nothing
// is loaded from disk: every effect is a short sequence of sine notes.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/engine"
)

const SampleRate = beep.SampleRate(44100)

// Note is one pitch held for a duration. A zero frequency is a rest.
type Note struct {
	Freq     float64
	Duration time.Duration
}

// Tone is the sound played for one event type
type Tone struct {
	Notes  []Note
	Volume float64 // linear gain, 1 is unchanged
}

// Duration is the total length of the tone
func (t Tone) Duration() time.Duration {
	var d time.Duration
	for _, n := range t.Notes {
		d += n.Duration
	}
	return d
}

// Tones maps event types to their sound. Events without an entry are silent.
var Tones = map[engine.EventType]Tone{
	engine.EventFire:        {Notes: []Note{{880, 30 * time.Millisecond}}, Volume: 0.3},
	engine.EventHit:         {Notes: []Note{{330, 40 * time.Millisecond}}, Volume: 0.5},
	engine.EventDestroy:     {Notes: []Note{{220, 60 * time.Millisecond}, {110, 90 * time.Millisecond}}, Volume: 0.6},
	engine.EventBulletClash: {Notes: []Note{{1320, 25 * time.Millisecond}}, Volume: 0.3},
	engine.EventPowerup:     {Notes: []Note{{660, 60 * time.Millisecond}, {880, 60 * time.Millisecond}, {1320, 90 * time.Millisecond}}, Volume: 0.5},
	engine.EventRespawn:     {Notes: []Note{{440, 80 * time.Millisecond}, {660, 80 * time.Millisecond}}, Volume: 0.4},
	engine.EventReinforce:   {Notes: []Note{{196, 70 * time.Millisecond}}, Volume: 0.3},
	engine.EventGameOver: {Notes: []Note{
		{392, 150 * time.Millisecond}, {330, 150 * time.Millisecond}, {262, 300 * time.Millisecond},
	}, Volume: 0.6},
	engine.EventVictory: {Notes: []Note{
		{523, 100 * time.Millisecond}, {659, 100 * time.Millisecond}, {784, 100 * time.Millisecond},
		{0, 50 * time.Millisecond}, {1047, 250 * time.Millisecond},
	}, Volume: 0.6},
}

// Streamer renders a tone. It returns nil for a tone without notes.
func Streamer(t Tone) beep.Streamer {
	if len(t.Notes) == 0 {
		return nil
	}
	parts := make([]beep.Streamer, 0, len(t.Notes))
	for _, n := range t.Notes {
		samples := SampleRate.N(n.Duration)
		if n.Freq <= 0 {
			parts = append(parts, beep.Silence(samples))
			continue
		}
		sine, err := generators.SineTone(SampleRate, n.Freq)
		if err != nil {
			// Above the Nyquist frequency
			parts = append(parts, beep.Silence(samples))
			continue
		}
		parts = append(parts, beep.Take(samples, sine))
	}
	return withVolume(beep.Seq(parts...), t.Volume)
}

// math.Log2(0) is -Inf, so zero volume is made silent instead
func withVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// Sink implements engine.EventSink. Until Init succeeds every event is
// dropped, so a sink can be wired in unconditionally.
type Sink struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
	muted       bool
	log         logrus.FieldLogger
}

// NewSink creates a sink that is silent until Init
func NewSink(log logrus.FieldLogger) *Sink {
	return &Sink{
		mixer: &beep.Mixer{},
		log:   log.WithField("component", "audio"),
	}
}

// Init opens the speaker. The game runs fine without sound, so callers
// usually log the error and carry on.
func (s *Sink) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/20)); err != nil {
		return err
	}
	speaker.Play(s.mixer)
	s.initialized = true
	return nil
}

// Close stops playback and releases the speaker
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	s.initialized = false
}

// SetMuted toggles sound without closing the speaker
func (s *Sink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Muted reports whether the sink is muted
func (s *Sink) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Emit plays the tone of e
func (s *Sink) Emit(e engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || s.muted {
		return
	}
	tone, ok := Tones[e.Type]
	if !ok {
		return
	}
	streamer := Streamer(tone)
	if streamer == nil {
		return
	}

	speaker.Lock()
	s.mixer.Add(streamer)
	speaker.Unlock()
	s.log.WithFields(logrus.Fields{"event": e.Type, "tick": e.Tick}).Trace("sound")
}

var _ engine.EventSink = (*Sink)(nil)
