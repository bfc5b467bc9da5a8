// Package playback schedules synthesized speech onto a single audio
// output: one-shot utterances, multi-segment reader playback with
// pause/resume and auto-advance, and pre-synthesized podcast audio with
// a per-line timeline.
package playback

import (
	"sync"
	"time"
)

// Clock returns the current time. Injectable for tests.
type Clock func() time.Time

// Handle controls one in-flight device playback.
type Handle interface {
	// Stop halts playback. Some backends still fire the completion
	// callback after a stop; callers must tolerate both orderings.
	Stop()
}

// Device starts playback of raw 24 kHz mono 16-bit PCM at a byte offset
// corresponding to the given elapsed duration. done fires when playback
// ends naturally, and on some backends also after Stop.
type Device interface {
	Play(audio []byte, offset time.Duration, done func()) (Handle, error)
}

// Output serializes access to the playback device. At most one playback
// is active; starting a new one preempts the current holder, whose
// onPreempt callback fires so it can settle its own state.
type Output struct {
	dev Device

	mu  sync.Mutex
	cur *activePlayback
}

type activePlayback struct {
	handle     Handle
	onPreempt  func()
	suppressed bool
	finished   bool
}

// NewOutput wraps a playback device in the exclusivity guard.
func NewOutput(dev Device) *Output {
	return &Output{dev: dev}
}

// Play preempts any active playback and starts a new one. onDone fires
// on natural completion; onPreempt fires if a later Play steals the
// output. Neither fires after an explicit Stop initiated by the holder
// unless the backend itself reports completion.
func (o *Output) Play(audio []byte, offset time.Duration, onDone, onPreempt func()) error {
	o.mu.Lock()
	prev := o.cur
	o.cur = nil
	if prev != nil {
		prev.suppressed = true
		prev.handle.Stop()
	}
	o.mu.Unlock()
	if prev != nil && prev.onPreempt != nil {
		prev.onPreempt()
	}

	ap := &activePlayback{onPreempt: onPreempt}
	handle, err := o.dev.Play(audio, offset, func() {
		o.mu.Lock()
		suppressed := ap.suppressed
		ap.finished = true
		if o.cur == ap {
			o.cur = nil
		}
		o.mu.Unlock()
		if !suppressed && onDone != nil {
			onDone()
		}
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	ap.handle = handle
	if !ap.finished {
		o.cur = ap
	}
	o.mu.Unlock()
	return nil
}

// Stop halts the active playback, if any. The holder's completion
// callback may still fire if the backend reports completion on stop.
func (o *Output) Stop() {
	o.mu.Lock()
	cur := o.cur
	o.cur = nil
	o.mu.Unlock()
	if cur != nil {
		cur.handle.Stop()
	}
}
