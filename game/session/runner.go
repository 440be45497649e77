package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/battlecity/game/service"
)

// Runner steps one session in real time with its held input
type Runner struct {
	session *service.Session
	rate    int
	onTick  service.TickFunc
	log     logrus.FieldLogger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRunner creates a runner playing session at rate ticks per second
func NewRunner(session *service.Session, rate int, onTick service.TickFunc, log logrus.FieldLogger) *Runner {
	if rate < 1 {
		rate = service.DefaultTickRate
	}
	return &Runner{
		session: session,
		rate:    rate,
		onTick:  onTick,
		log:     log.WithField("session", session.ID),
		done:    make(chan struct{}),
	}
}

// Start launches the tick loop. It runs until ctx is cancelled or Stop is
// called.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.session.SetRunning(true)
	go r.run(ctx)
}

// Stop cancels the tick loop and waits for it to exit. It is safe to call
// more than once.
func (r *Runner) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}

// Done is closed once the tick loop has exited
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.session.SetRunning(false)

	ticker := time.NewTicker(time.Second / time.Duration(r.rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, view := r.session.Tick()
			if len(events) > 0 {
				r.log.WithFields(logrus.Fields{"tick": view.HUD.Tick, "events": len(events)}).Debug("tick")
			}
			if r.onTick != nil {
				r.onTick(r.session.ID, events, view)
			}
		}
	}
}
