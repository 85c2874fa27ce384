// Package session drives the connection and recording lifecycle: it owns the
// signaling handshake, the peer connection with its two ordered channels, the
// microphone capture engine, and the accumulated transcript.
//
// A [Manager] holds at most one session at a time. Commands (Connect,
// Disconnect, StartRecording, StopRecording) and asynchronous transport
// events are serialized through a single mutex; results of slow operations
// that ran outside the lock are committed only if the session generation they
// belong to is still current, so a Disconnect issued mid-handshake wins.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/miclink/miclink/internal/capture"
	"github.com/miclink/miclink/internal/observe"
	"github.com/miclink/miclink/internal/transcript"
	"github.com/miclink/miclink/pkg/transport"
)

// Signaler performs the offer/answer exchange with the transcription server.
// *signaling.Client is the production implementation.
type Signaler interface {
	Exchange(ctx context.Context, offer transport.Description) (transport.Description, error)
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = met }
}

// WithCaptureConfig sets the capture configuration used by StartRecording.
func WithCaptureConfig(cfg capture.Config) Option {
	return func(m *Manager) { m.capCfg = cfg }
}

// Manager owns the single client session. Safe for concurrent use.
type Manager struct {
	dialer  transport.Dialer
	signal  Signaler
	backend capture.Backend
	capCfg  capture.Config

	log     *slog.Logger
	metrics *observe.Metrics

	transcript *transcript.Transcript
	ingester   *transcript.Ingester

	// mu serializes every state transition. gen increments whenever the
	// current session (or attempt) is invalidated; slow operations capture
	// gen before unlocking and commit only if it is unchanged after.
	mu        sync.Mutex
	state     State
	errMsg    string
	gen       uint64
	sess      *session
	starting  bool
	peerState transport.PeerState
}

// NewManager wires a Manager from its collaborators.
func NewManager(dialer transport.Dialer, signal Signaler, backend capture.Backend, opts ...Option) *Manager {
	m := &Manager{
		dialer:     dialer,
		signal:     signal,
		backend:    backend,
		log:        slog.Default(),
		metrics:    observe.DefaultMetrics(),
		transcript: &transcript.Transcript{},
		peerState:  transport.PeerNew,
	}
	for _, o := range opts {
		o(m)
	}
	m.ingester = transcript.NewIngester(m.transcript,
		transcript.WithEventObserver(func(eventType string) {
			m.metrics.RecordEvent(context.Background(), eventType)
		}),
		transcript.WithMalformedObserver(func() {
			m.metrics.MalformedMessages.Add(context.Background(), 1)
		}),
	)
	return m
}

// Connect establishes a new session: peer creation, channel negotiation, the
// HTTP offer/answer exchange, and answer application. On return the state is
// Connecting; it advances to Connected asynchronously when the audio channel
// opens.
//
// Allowed from Disconnected and Error. Returns [ErrSessionActive] otherwise,
// and [ErrSuperseded] when a Disconnect won the race against the handshake.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected && m.state != StateError {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	m.errMsg = ""
	m.mu.Unlock()

	m.log.Info("connecting")
	sess, err := m.establish(ctx, gen)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		if sess != nil {
			sess.release(m.log)
		}
		if err != nil {
			return err
		}
		return ErrSuperseded
	}
	if err != nil {
		m.toErrorLocked(err)
		return err
	}
	m.sess = sess
	m.metrics.ActiveSessions.Add(context.Background(), 1)
	return nil
}

// establish runs the handshake without holding the manager mutex. The
// returned session is not yet committed; on error every partially acquired
// resource has been released.
func (m *Manager) establish(ctx context.Context, gen uint64) (*session, error) {
	peer, err := m.dialer.NewPeer()
	if err != nil {
		return nil, fmt.Errorf("create peer: %w", err)
	}
	sess := &session{peer: peer}

	audioCh, err := peer.CreateChannel(audioChannelLabel)
	if err != nil {
		sess.release(m.log)
		return nil, fmt.Errorf("create audio channel: %w", err)
	}
	sess.audio = audioCh
	sess.sink = transport.NewBestEffort(audioCh, func(reason string) {
		m.metrics.RecordFrameDrop(context.Background(), reason)
	})

	textCh, err := peer.CreateChannel(textChannelLabel)
	if err != nil {
		sess.release(m.log)
		return nil, fmt.Errorf("create transcription channel: %w", err)
	}
	sess.text = textCh

	audioCh.OnOpen(func() { m.onAudioOpen(gen) })
	audioCh.OnClose(func() { m.onAudioClose(gen) })
	audioCh.OnError(func(err error) {
		m.log.Warn("audio channel error", "err", err)
	})
	textCh.OnMessage(func(data []byte) { m.onTranscription(gen, data) })
	peer.OnStateChange(func(st transport.PeerState) { m.onPeerState(gen, st) })

	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		sess.release(m.log)
		return nil, fmt.Errorf("create offer: %w", err)
	}

	start := time.Now()
	answer, err := m.signal.Exchange(ctx, offer)
	m.metrics.SignalingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		sess.release(m.log)
		return nil, fmt.Errorf("signaling exchange: %w", err)
	}

	if err := peer.SetAnswer(answer); err != nil {
		sess.release(m.log)
		return nil, fmt.Errorf("apply answer: %w", err)
	}

	m.log.Info("handshake complete", "signaling_ms", time.Since(start).Milliseconds())
	return sess, nil
}

// Disconnect tears down the session from any state and returns the manager
// to Disconnected with an empty transcript and no error message. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.log.Info("disconnected")
}

// StartRecording acquires the microphone and begins streaming resampled
// frames over the audio channel. The transcript is cleared for the new
// recording. Requires StateConnected; a capture failure releases the whole
// session and moves the manager to StateError.
func (m *Manager) StartRecording() error {
	m.mu.Lock()
	if m.state == StateRecording || m.starting {
		m.mu.Unlock()
		return ErrRecordingActive
	}
	if m.state != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	gen := m.gen
	sess := m.sess
	m.starting = true
	m.transcript.Reset()
	m.mu.Unlock()

	sink := &meteredSink{sink: sess.sink, metrics: m.metrics}
	engine, err := capture.Start(m.backend, m.capCfg, sink,
		capture.WithChunkObserver(func(d time.Duration) {
			m.metrics.RecordResample(context.Background(), d)
		}),
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	if m.gen != gen {
		if engine != nil {
			engine.Close()
		}
		if err != nil {
			return err
		}
		return ErrSuperseded
	}
	if err != nil {
		m.toErrorLocked(err)
		return err
	}
	sess.engine = engine
	m.state = StateRecording
	return nil
}

// StopRecording releases the microphone and returns to StateConnected. The
// accumulated transcript is kept. Returns [ErrNotRecording] outside
// StateRecording.
func (m *Manager) StopRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRecording {
		return ErrNotRecording
	}
	if m.sess.engine != nil {
		m.sess.engine.Close()
		m.sess.engine = nil
	}
	m.state = StateConnected
	return nil
}

// Snapshot is a point-in-time view of the manager for status displays.
type Snapshot struct {
	State      State
	Err        string
	Transcript string
	Peer       transport.PeerState
	AudioOpen  bool
	TextOpen   bool
	FrameDrops uint64
}

// Snapshot returns the current state, error message, transcript, and channel
// readiness.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:      m.state,
		Err:        m.errMsg,
		Transcript: m.transcript.String(),
		Peer:       m.peerState,
	}
	if m.sess != nil {
		s.AudioOpen = m.sess.audio.Open()
		s.TextOpen = m.sess.text.Open()
		s.FrameDrops = m.sess.sink.Drops()
	}
	return s
}

// Transcript returns the accumulated transcript text.
func (m *Manager) Transcript() string {
	return m.transcript.String()
}

// onAudioOpen advances Connecting to Connected once the audio channel is
// ready. Stale generations are ignored.
func (m *Manager) onAudioOpen(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if m.state == StateConnecting {
		m.state = StateConnected
		m.log.Info("audio channel open")
	}
}

// onAudioClose stops an active recording when the server closes the audio
// channel; the session itself stays connected until the peer state says
// otherwise.
func (m *Manager) onAudioClose(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if m.state == StateRecording {
		if m.sess != nil && m.sess.engine != nil {
			m.sess.engine.Close()
			m.sess.engine = nil
		}
		m.state = StateConnected
		m.log.Warn("audio channel closed during recording")
	}
}

// onTranscription forwards an inbound transcription-channel payload to the
// ingester. Messages from superseded sessions are discarded.
func (m *Manager) onTranscription(gen uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.ingester.HandleMessage(data)
}

// onPeerState reacts to peer connection state transitions: a failure is
// fatal, a close or disconnect tears the session down cleanly.
func (m *Manager) onPeerState(gen uint64, st transport.PeerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.peerState = st
	m.log.Debug("peer state changed", "state", st.String())
	switch st {
	case transport.PeerFailed:
		m.toErrorLocked(ErrTransportFailed)
	case transport.PeerClosed, transport.PeerDisconnected:
		m.resetLocked()
		m.log.Info("peer connection closed")
	}
}

// resetLocked returns the manager to a pristine Disconnected state. It bumps
// the generation so in-flight operations discard their results.
func (m *Manager) resetLocked() {
	m.gen++
	m.cleanupLocked()
	m.transcript.Reset()
	m.errMsg = ""
	m.state = StateDisconnected
	m.peerState = transport.PeerNew
}

// toErrorLocked releases all session resources and parks the manager in
// StateError with a descriptive message.
func (m *Manager) toErrorLocked(err error) {
	m.gen++
	m.cleanupLocked()
	m.errMsg = err.Error()
	m.state = StateError
	m.log.Error("session failed", "err", err)
}

// cleanupLocked releases the current session, if any. Idempotent.
func (m *Manager) cleanupLocked() {
	if m.sess != nil {
		m.sess.release(m.log)
		m.sess = nil
		m.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}
