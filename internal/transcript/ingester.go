package transcript

import "log/slog"

// Ingester routes inbound transcription-channel payloads: transcription
// events append to the transcript, status events are logged for diagnostics,
// and malformed payloads are dropped without mutating any state.
type Ingester struct {
	transcript *Transcript
	log        *slog.Logger

	// onEvent, when set, observes every well-formed event by type.
	onEvent func(eventType string)

	// onMalformed, when set, observes every discarded payload.
	onMalformed func()
}

// IngesterOption configures a [NewIngester] call.
type IngesterOption func(*Ingester)

// WithEventObserver registers fn to be called with the type of every
// well-formed event. Used to feed metrics.
func WithEventObserver(fn func(eventType string)) IngesterOption {
	return func(i *Ingester) { i.onEvent = fn }
}

// WithMalformedObserver registers fn to be called for every discarded
// payload. Used to feed metrics.
func WithMalformedObserver(fn func()) IngesterOption {
	return func(i *Ingester) { i.onMalformed = fn }
}

// NewIngester creates an Ingester appending to t.
func NewIngester(t *Transcript, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		transcript: t,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// HandleMessage processes one inbound payload. It never fails: bad input is
// logged at debug level and dropped.
func (i *Ingester) HandleMessage(data []byte) {
	ev, err := ParseEvent(data)
	if err != nil {
		i.log.Debug("discarding malformed transcription payload", "err", err, "bytes", len(data))
		if i.onMalformed != nil {
			i.onMalformed()
		}
		return
	}

	switch ev.Type {
	case TypeTranscription:
		i.transcript.Append(ev.Text)
		i.log.Debug("transcription fragment", "text", ev.Text, "timestamp", ev.Timestamp)
	case TypeStatus:
		i.log.Info("recognition server status", "message", ev.Message)
	}
	if i.onEvent != nil {
		i.onEvent(ev.Type)
	}
}
