package keystone

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *frameRecorder) record(part string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, part)
}

func (r *frameRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func TestAnimator(t *testing.T) {
	t.Run("emits first frame immediately then one per interval", func(t *testing.T) {
		clock := new(mclock.Simulated)
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		rec := &frameRecorder{}
		a := NewAnimator(enc, clock, DefaultFrameInterval)
		a.Start(rec.record)
		assert.Len(t, rec.all(), 1)

		clock.Run(50 * time.Millisecond)
		assert.Len(t, rec.all(), 1)

		for i := 0; i < 6; i++ {
			clock.Run(DefaultFrameInterval)
		}
		frames := rec.all()
		require.Len(t, frames, 7)
		assert.Equal(t, frames[0], frames[3])
		assert.Equal(t, frames[0], frames[6])
		assert.NotEqual(t, frames[0], frames[1])

		a.Stop()
	})

	t.Run("stop tears down the timer", func(t *testing.T) {
		clock := new(mclock.Simulated)
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		rec := &frameRecorder{}
		a := NewAnimator(enc, clock, DefaultFrameInterval)
		a.Start(rec.record)
		clock.Run(DefaultFrameInterval)
		a.Stop()

		assert.False(t, a.Running())
		assert.Equal(t, 0, clock.ActiveTimers())

		clock.Run(time.Second)
		assert.Len(t, rec.all(), 2)
	})

	t.Run("restart begins at fragment zero", func(t *testing.T) {
		clock := new(mclock.Simulated)
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		rec := &frameRecorder{}
		a := NewAnimator(enc, clock, DefaultFrameInterval)
		a.Start(rec.record)
		clock.Run(DefaultFrameInterval)
		a.Start(rec.record)

		frames := rec.all()
		require.Len(t, frames, 3)
		assert.Equal(t, frames[0], frames[2])
		a.Stop()
	})

	t.Run("late tick from a stopped chain is dropped", func(t *testing.T) {
		clock := new(mclock.Simulated)
		enc, err := NewEncoder(bigUR(t, 1000), DefaultMaxFragmentLen)
		require.NoError(t, err)

		rec := &frameRecorder{}
		a := NewAnimator(enc, clock, DefaultFrameInterval)
		a.Start(rec.record)
		a.mu.Lock()
		stale := a.gen
		a.mu.Unlock()

		a.Stop()
		a.Start(rec.record)
		a.tick(stale)
		assert.Len(t, rec.all(), 2)
		assert.Equal(t, 1, clock.ActiveTimers())

		clock.Run(DefaultFrameInterval)
		assert.Len(t, rec.all(), 3)

		a.Stop()
		assert.Equal(t, 0, clock.ActiveTimers())
		clock.Run(time.Second)
		assert.Len(t, rec.all(), 3)
	})
}
