package core

import (
	"time"

	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/ports"
)

// InputKind names a qualifying interaction for logging. The debouncer
// treats all kinds identically.
type InputKind string

const (
	InputPointerDown InputKind = "pointer_down"
	InputPointerMove InputKind = "pointer_move"
	InputKeyDown     InputKind = "key_down"
	InputTouchStart  InputKind = "touch_start"
	InputScroll      InputKind = "scroll"
)

// Presence tracks whether a human is present: Active while qualifying
// input keeps arriving, Inactive after a full window passes without
// any. It is a presentation signal only and never gates protocol
// traffic. All mutation runs on the session loop via exec, so no lock
// is needed; the timer callback re-checks elapsed time because a touch
// may have been queued after the timer fired.
type Presence struct {
	log    *zap.Logger
	clock  ports.Clock
	window time.Duration
	exec   func(func()) bool

	timer    *time.Timer
	active   bool
	lastMS   int64
	onChange func()
}

func newPresence(log *zap.Logger, clk ports.Clock, window time.Duration, exec func(func()) bool) *Presence {
	p := &Presence{
		log:    log,
		clock:  clk,
		window: window,
		exec:   exec,
		active: true,
		lastMS: clk.NowUnixMilli(),
	}
	p.timer = time.AfterFunc(window, func() {
		p.exec(p.expire)
	})
	return p
}

// Touch records a qualifying input: forces Active and restarts the
// idle window. Safe to call from any goroutine.
func (p *Presence) Touch(kind InputKind) {
	p.exec(func() {
		p.lastMS = p.clock.NowUnixMilli()
		if !p.active {
			p.active = true
			p.log.Debug("presence active", zap.String("input", string(kind)))
			if p.onChange != nil {
				p.onChange()
			}
		}
		p.timer.Reset(p.window)
	})
}

// Stop cancels the idle timer on session teardown. Once the session
// mailbox closes, exec rejects work, so expire and Touch become inert.
func (p *Presence) Stop() {
	p.timer.Stop()
}

func (p *Presence) expire() {
	if !p.active {
		return
	}
	elapsed := time.Duration(p.clock.NowUnixMilli()-p.lastMS) * time.Millisecond
	if elapsed < p.window {
		// A touch raced the timer; it already rescheduled.
		return
	}
	p.active = false
	p.log.Debug("presence inactive")
	if p.onChange != nil {
		p.onChange()
	}
}
