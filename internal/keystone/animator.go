package keystone

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
)

// DefaultFrameInterval is how long each QR frame stays on screen.
const DefaultFrameInterval = 100 * time.Millisecond

// Animator drives an Encoder at a fixed cadence for a screen that shows one
// QR frame at a time.
type Animator struct {
	mu       sync.Mutex
	enc      *Encoder
	clock    mclock.Clock
	interval time.Duration
	onFrame  func(part string)
	timer    mclock.Timer
	running  bool
	// gen identifies the live timer chain; ticks from older chains are dropped.
	gen uint64
}

// NewAnimator creates an animator; a nil clock means the system clock.
func NewAnimator(enc *Encoder, clock mclock.Clock, interval time.Duration) *Animator {
	if clock == nil {
		clock = mclock.System{}
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Animator{enc: enc, clock: clock, interval: interval}
}

// Start restarts the sequence at fragment zero, emits the first frame
// synchronously and then one frame per interval until Stop.
func (a *Animator) Start(onFrame func(part string)) {
	a.mu.Lock()
	a.stopLocked()
	a.enc.Reset()
	a.onFrame = onFrame
	a.running = true
	a.gen++
	part := a.enc.NextPart()
	a.scheduleLocked(a.gen)
	a.mu.Unlock()

	onFrame(part)
}

func (a *Animator) scheduleLocked(gen uint64) {
	a.timer = a.clock.AfterFunc(a.interval, func() { a.tick(gen) })
}

func (a *Animator) tick(gen uint64) {
	a.mu.Lock()
	if !a.running || gen != a.gen {
		a.mu.Unlock()
		return
	}
	part := a.enc.NextPart()
	onFrame := a.onFrame
	a.scheduleLocked(gen)
	a.mu.Unlock()

	onFrame(part)
}

// Stop cancels the pending frame. No frame is scheduled after Stop returns.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Animator) stopLocked() {
	a.running = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Running reports whether frames are being produced.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
