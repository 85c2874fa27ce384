package session

import "errors"

// State is the connection/recording lifecycle state. Exactly one session
// exists per Manager; the state describes it.
type State int

const (
	// StateDisconnected is the initial state: no session resources exist.
	StateDisconnected State = iota

	// StateConnecting means the signaling handshake is in progress or the
	// audio channel has not yet reported open.
	StateConnecting

	// StateConnected means both channels are negotiated and the audio
	// channel is open; recording may start.
	StateConnected

	// StateRecording means the microphone is live and frames are streaming.
	StateRecording

	// StateError means a fatal failure occurred; all session resources have
	// been released and [Manager.Snapshot] carries a descriptive message.
	StateError
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionActive is returned by Connect when a session already exists.
	ErrSessionActive = errors.New("session: a session is already active")

	// ErrSuperseded is returned by Connect when the handshake result arrived
	// after the session it refers to was torn down.
	ErrSuperseded = errors.New("session: connect superseded by disconnect")

	// ErrNotConnected is returned by StartRecording outside StateConnected.
	ErrNotConnected = errors.New("session: not connected")

	// ErrNotRecording is returned by StopRecording outside StateRecording.
	ErrNotRecording = errors.New("session: not recording")

	// ErrRecordingActive is returned by StartRecording when a recording is
	// already running or starting.
	ErrRecordingActive = errors.New("session: recording already active")

	// ErrTransportFailed reports a fatal peer connection failure.
	ErrTransportFailed = errors.New("session: peer connection failed")
)
