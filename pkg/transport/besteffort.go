package transport

import (
	"log/slog"
	"sync/atomic"
)

// BestEffort wraps a [Channel] with fire-and-forget send semantics: frames
// sent while the channel is not open, or that fail to send, are dropped and
// counted rather than surfaced as errors. Send never blocks the caller,
// which makes the wrapper safe to use from an audio callback.
//
// It also drops frames written after [BestEffort.Close], preventing late
// audio ticks from touching a torn-down channel.
type BestEffort struct {
	ch     Channel
	closed atomic.Bool
	drops  atomic.Uint64

	// onDrop, when set, observes every dropped frame with a reason.
	onDrop func(reason string)
}

// NewBestEffort wraps ch. onDrop may be nil.
func NewBestEffort(ch Channel, onDrop func(reason string)) *BestEffort {
	return &BestEffort{ch: ch, onDrop: onDrop}
}

// Send transmits data if the channel is open. Returns false when the frame
// was dropped.
func (b *BestEffort) Send(data []byte) bool {
	if b.closed.Load() {
		b.drop("closed")
		return false
	}
	if !b.ch.Open() {
		b.drop("not_open")
		return false
	}
	if err := b.ch.Send(data); err != nil {
		slog.Debug("best-effort send failed, frame dropped",
			"channel", b.ch.Label(),
			"bytes", len(data),
			"err", err,
		)
		b.drop("send_error")
		return false
	}
	return true
}

// Close marks the wrapper as closed. Subsequent Send calls drop their frames.
// The underlying channel is not touched; its lifetime belongs to the peer.
func (b *BestEffort) Close() {
	b.closed.Store(true)
}

// Drops returns the number of frames dropped so far.
func (b *BestEffort) Drops() uint64 {
	return b.drops.Load()
}

func (b *BestEffort) drop(reason string) {
	b.drops.Add(1)
	if b.onDrop != nil {
		b.onDrop(reason)
	}
}
