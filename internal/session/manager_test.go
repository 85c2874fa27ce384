package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/miclink/miclink/internal/capture"
	"github.com/miclink/miclink/internal/session"
	"github.com/miclink/miclink/pkg/audio"
	"github.com/miclink/miclink/pkg/transport"
	"github.com/miclink/miclink/pkg/transport/mock"
)

// stubSignaler is a scriptable Signaler. When Block is non-nil, Exchange
// closes Entered on entry and waits until Block is closed, letting tests
// race commands against the handshake.
type stubSignaler struct {
	Answer  transport.Description
	Err     error
	Block   chan struct{}
	Entered chan struct{}

	mu     sync.Mutex
	offers []transport.Description
}

func (s *stubSignaler) Exchange(_ context.Context, offer transport.Description) (transport.Description, error) {
	if s.Block != nil {
		if s.Entered != nil {
			close(s.Entered)
		}
		<-s.Block
	}
	s.mu.Lock()
	s.offers = append(s.offers, offer)
	s.mu.Unlock()
	if s.Err != nil {
		return transport.Description{}, s.Err
	}
	if s.Answer.SDP == "" {
		return transport.Description{SDP: "v=0\r\ns=answer\r\n", Type: "answer"}, nil
	}
	return s.Answer, nil
}

func (s *stubSignaler) Offers() []transport.Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Description, len(s.offers))
	copy(out, s.offers)
	return out
}

// newTestManager wires a manager with one scripted peer, a stub signaler and
// a fake 48 kHz mono capture backend.
func newTestManager(t *testing.T) (*session.Manager, *mock.Peer, *stubSignaler, *capture.FakeBackend) {
	t.Helper()
	peer := mock.NewPeer()
	sig := &stubSignaler{}
	backend := &capture.FakeBackend{Ctx: capture.NewFakeContext(48000, 1)}
	m := session.NewManager(mock.NewDialer(peer), sig, backend)
	return m, peer, sig, backend
}

// connect establishes the session and opens the audio channel.
func connect(t *testing.T, m *session.Manager, peer *mock.Peer) {
	t.Helper()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	peer.Channel("audio").FireOpen()
	if got := m.Snapshot().State; got != session.StateConnected {
		t.Fatalf("state after audio open = %v, want connected", got)
	}
}

func TestConnectHandshake(t *testing.T) {
	m, peer, sig, _ := newTestManager(t)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	snap := m.Snapshot()
	if snap.State != session.StateConnecting {
		t.Errorf("state = %v, want connecting", snap.State)
	}
	if peer.Channel("audio") == nil || peer.Channel("transcription") == nil {
		t.Fatal("expected audio and transcription channels to be negotiated")
	}
	if len(sig.Offers()) != 1 {
		t.Fatalf("offers sent = %d, want 1", len(sig.Offers()))
	}
	if ans := peer.Answer(); ans == nil || ans.Type != "answer" {
		t.Errorf("applied answer = %+v, want type answer", ans)
	}

	peer.Channel("audio").FireOpen()
	if got := m.Snapshot().State; got != session.StateConnected {
		t.Errorf("state after audio open = %v, want connected", got)
	}
}

func TestConnectWhileActive(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)

	if err := m.Connect(context.Background()); !errors.Is(err, session.ErrSessionActive) {
		t.Errorf("Connect while connected = %v, want ErrSessionActive", err)
	}
}

func TestConnectSignalingFailure(t *testing.T) {
	m, peer, sig, _ := newTestManager(t)
	sig.Err = errors.New("server unreachable")

	err := m.Connect(context.Background())
	if err == nil {
		t.Fatal("expected Connect to fail")
	}

	snap := m.Snapshot()
	if snap.State != session.StateError {
		t.Errorf("state = %v, want error", snap.State)
	}
	if snap.Err == "" {
		t.Error("expected a descriptive error message")
	}
	if !peer.Closed() {
		t.Error("expected peer to be released on failure")
	}
}

func TestConnectAfterError(t *testing.T) {
	m, _, sig, _ := newTestManager(t)
	sig.Err = errors.New("server unreachable")
	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("expected first Connect to fail")
	}

	sig.Err = nil
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect after error: %v", err)
	}
	if got := m.Snapshot().State; got != session.StateConnecting {
		t.Errorf("state = %v, want connecting", got)
	}
}

func TestDisconnectWinsHandshakeRace(t *testing.T) {
	m, peer, sig, _ := newTestManager(t)
	sig.Block = make(chan struct{})
	sig.Entered = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	// Wait until the handshake is blocked in the signaling exchange, then
	// disconnect before it can complete.
	<-sig.Entered
	m.Disconnect()
	close(sig.Block)

	if err := <-done; !errors.Is(err, session.ErrSuperseded) {
		t.Errorf("Connect = %v, want ErrSuperseded", err)
	}
	if !peer.Closed() {
		t.Error("expected superseded peer to be released")
	}
	if got := m.Snapshot().State; got != session.StateDisconnected {
		t.Errorf("state = %v, want disconnected", got)
	}
}

func TestStartRecordingStreamsFrames(t *testing.T) {
	m, peer, _, backend := newTestManager(t)
	connect(t, m, peer)

	if err := m.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if got := m.Snapshot().State; got != session.StateRecording {
		t.Fatalf("state = %v, want recording", got)
	}

	// One full 4096-sample chunk at 48 kHz resamples to 1365 16-bit samples.
	dev := backend.Ctx.Device()
	samples := make([]float32, 4096)
	for i := range samples {
		samples[i] = 0.25
	}
	dev.Push(audio.EncodeF32LE(samples), uint32(len(samples)))

	sent := peer.Channel("audio").Sent()
	if len(sent) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(sent))
	}
	if len(sent[0]) != 2730 {
		t.Errorf("frame size = %d bytes, want 2730", len(sent[0]))
	}

	if err := m.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if got := m.Snapshot().State; got != session.StateConnected {
		t.Errorf("state after stop = %v, want connected", got)
	}
	if !dev.Closed() {
		t.Error("expected capture device to be released")
	}
}

func TestStartRecordingRequiresConnected(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	if err := m.StartRecording(); !errors.Is(err, session.ErrNotConnected) {
		t.Errorf("StartRecording while disconnected = %v, want ErrNotConnected", err)
	}
}

func TestStartRecordingTwice(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)

	if err := m.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := m.StartRecording(); !errors.Is(err, session.ErrRecordingActive) {
		t.Errorf("second StartRecording = %v, want ErrRecordingActive", err)
	}
}

func TestStartRecordingCaptureFailure(t *testing.T) {
	m, peer, _, backend := newTestManager(t)
	backend.Ctx.OpenErr = errors.New("mic access denied by user")
	connect(t, m, peer)

	err := m.StartRecording()
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("StartRecording = %v, want ErrPermissionDenied", err)
	}

	snap := m.Snapshot()
	if snap.State != session.StateError {
		t.Errorf("state = %v, want error", snap.State)
	}
	if !peer.Closed() {
		t.Error("expected session to be torn down on capture failure")
	}
}

func TestStopRecordingRequiresRecording(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)
	if err := m.StopRecording(); !errors.Is(err, session.ErrNotRecording) {
		t.Errorf("StopRecording while connected = %v, want ErrNotRecording", err)
	}
}

func TestTranscriptionIngest(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)

	text := peer.Channel("transcription")
	text.FireMessage([]byte(`{"type":"transcription","text":"hello","timestamp":1.0}`))
	text.FireMessage([]byte(`{"type":"status","message":"listening"}`))
	text.FireMessage([]byte(`not json`))
	text.FireMessage([]byte(`{"type":"transcription","text":"world","timestamp":2.0}`))

	if got := m.Transcript(); got != "hello world " {
		t.Errorf("transcript = %q, want %q", got, "hello world ")
	}
}

func TestStartRecordingClearsTranscript(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)

	peer.Channel("transcription").FireMessage([]byte(`{"type":"transcription","text":"stale","timestamp":1.0}`))
	if err := m.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if got := m.Transcript(); got != "" {
		t.Errorf("transcript after start = %q, want empty", got)
	}
}

func TestAudioCloseStopsRecording(t *testing.T) {
	m, peer, _, backend := newTestManager(t)
	connect(t, m, peer)
	if err := m.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	peer.Channel("audio").FireClose()

	if got := m.Snapshot().State; got != session.StateConnected {
		t.Errorf("state = %v, want connected", got)
	}
	if !backend.Ctx.Device().Closed() {
		t.Error("expected capture device to be released")
	}
}

func TestPeerFailureIsFatal(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)

	peer.FireState(transport.PeerFailed)

	snap := m.Snapshot()
	if snap.State != session.StateError {
		t.Errorf("state = %v, want error", snap.State)
	}
	if snap.Err == "" {
		t.Error("expected a descriptive error message")
	}
	if !peer.Closed() {
		t.Error("expected session resources to be released")
	}
}

func TestPeerCloseResets(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)
	peer.Channel("transcription").FireMessage([]byte(`{"type":"transcription","text":"hello","timestamp":1.0}`))

	peer.FireState(transport.PeerClosed)

	snap := m.Snapshot()
	if snap.State != session.StateDisconnected {
		t.Errorf("state = %v, want disconnected", snap.State)
	}
	if snap.Transcript != "" {
		t.Errorf("transcript = %q, want empty after reset", snap.Transcript)
	}
}

func TestDisconnectFromAnyState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, m *session.Manager, peer *mock.Peer, sig *stubSignaler)
	}{
		{"disconnected", func(*testing.T, *session.Manager, *mock.Peer, *stubSignaler) {}},
		{"connected", func(t *testing.T, m *session.Manager, peer *mock.Peer, _ *stubSignaler) {
			connect(t, m, peer)
		}},
		{"recording", func(t *testing.T, m *session.Manager, peer *mock.Peer, _ *stubSignaler) {
			connect(t, m, peer)
			if err := m.StartRecording(); err != nil {
				t.Fatalf("StartRecording: %v", err)
			}
		}},
		{"error", func(t *testing.T, m *session.Manager, _ *mock.Peer, sig *stubSignaler) {
			sig.Err = errors.New("boom")
			if err := m.Connect(context.Background()); err == nil {
				t.Fatal("expected Connect to fail")
			}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, peer, sig, _ := newTestManager(t)
			tc.setup(t, m, peer, sig)

			m.Disconnect()
			m.Disconnect() // idempotent

			snap := m.Snapshot()
			if snap.State != session.StateDisconnected {
				t.Errorf("state = %v, want disconnected", snap.State)
			}
			if snap.Err != "" {
				t.Errorf("err = %q, want empty", snap.Err)
			}
			if snap.Transcript != "" {
				t.Errorf("transcript = %q, want empty", snap.Transcript)
			}
		})
	}
}

func TestStaleEventsIgnoredAfterDisconnect(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)
	m.Disconnect()

	// Events from the torn-down session must not leak into the fresh state.
	peer.Channel("transcription").FireMessage([]byte(`{"type":"transcription","text":"ghost","timestamp":1.0}`))
	peer.Channel("audio").FireOpen()
	peer.FireState(transport.PeerFailed)

	snap := m.Snapshot()
	if snap.State != session.StateDisconnected {
		t.Errorf("state = %v, want disconnected", snap.State)
	}
	if snap.Transcript != "" {
		t.Errorf("transcript = %q, want empty", snap.Transcript)
	}
}

func TestSnapshotReportsChannelState(t *testing.T) {
	m, peer, _, _ := newTestManager(t)
	connect(t, m, peer)
	peer.Channel("transcription").FireOpen()

	snap := m.Snapshot()
	if !snap.AudioOpen {
		t.Error("AudioOpen = false, want true")
	}
	if !snap.TextOpen {
		t.Error("TextOpen = false, want true")
	}
	if snap.Peer != transport.PeerNew {
		t.Errorf("peer state = %v, want new before any transition", snap.Peer)
	}
}
