package session

import (
	"context"
	"log/slog"

	"github.com/miclink/miclink/internal/capture"
	"github.com/miclink/miclink/internal/observe"
	"github.com/miclink/miclink/pkg/transport"
)

// Channel labels negotiated with the transcription server.
const (
	audioChannelLabel = "audio"
	textChannelLabel  = "transcription"
)

// session bundles the live resources of one established connection. All
// fields are set during establishment; release tears them down in reverse
// acquisition order.
type session struct {
	peer   transport.Peer
	audio  transport.Channel
	text   transport.Channel
	sink   *transport.BestEffort
	engine *capture.Engine
}

// release frees every resource the session holds. Safe to call on a
// partially constructed session and safe to call more than once.
func (s *session) release(log *slog.Logger) {
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
	if s.sink != nil {
		s.sink.Close()
	}
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			log.Warn("peer close failed", "err", err)
		}
		s.peer = nil
	}
}

// meteredSink wraps the best-effort audio sink and counts delivered frames.
// Drops are counted by the sink's own drop observer.
type meteredSink struct {
	sink    *transport.BestEffort
	metrics *observe.Metrics
}

var _ capture.FrameSink = (*meteredSink)(nil)

func (s *meteredSink) Send(data []byte) bool {
	if !s.sink.Send(data) {
		return false
	}
	s.metrics.RecordFrameSent(context.Background(), len(data))
	return true
}
