// Package transport defines the peer-connection and ordered-channel
// abstractions used by the miclink session layer.
//
// The two primary abstractions are:
//
//   - [Peer] — a single peer connection carrying ordered data channels and
//     reporting connection-state changes.
//   - [Channel] — one ordered, unreliable-delivery-tolerant message channel
//     on a peer.
//
// Implementations are provided by the pion subpackage (real WebRTC) and the
// mock subpackage (scriptable test doubles). The interfaces are intentionally
// narrow to keep the session manager decoupled from the WebRTC library.
package transport

import "context"

// Description is a session description exchanged during signaling.
type Description struct {
	SDP  string
	Type string
}

// PeerState classifies the connection state reported by a [Peer].
type PeerState int

const (
	// PeerNew is the initial state before any connectivity is established.
	PeerNew PeerState = iota

	// PeerConnected means the peer connection is fully established.
	PeerConnected

	// PeerDisconnected means connectivity was lost; the transport treats
	// this as a clean closure (no reconnection is attempted).
	PeerDisconnected

	// PeerFailed means the connection failed fatally.
	PeerFailed

	// PeerClosed means the connection was closed locally or remotely.
	PeerClosed
)

// String returns the human-readable name of the peer state.
func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerFailed:
		return "failed"
	case PeerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is one ordered bidirectional message channel on a peer connection.
//
// Handler registration replaces any previously registered handler. Handlers
// are invoked on transport-owned goroutines and must not block.
type Channel interface {
	// Label returns the channel's label ("audio", "transcription").
	Label() string

	// Send transmits a binary message. It returns an error when the channel
	// is not usable; delivery itself is best-effort and unacknowledged.
	Send(data []byte) error

	// Open reports whether the channel is in its open readiness state.
	Open() bool

	// OnOpen registers the handler invoked when the channel becomes open.
	OnOpen(func())

	// OnClose registers the handler invoked when the channel closes.
	OnClose(func())

	// OnError registers the handler invoked on a channel error.
	OnError(func(error))

	// OnMessage registers the handler invoked for each inbound payload.
	// The handler is responsible for validating the payload.
	OnMessage(func(data []byte))
}

// Peer is a single peer connection.
//
// Implementations must be safe for concurrent use.
type Peer interface {
	// CreateChannel creates an ordered data channel with the given label.
	// Channels must be created before the offer is generated so they are
	// negotiated in the initial handshake.
	CreateChannel(label string) (Channel, error)

	// CreateOffer generates the local session description, waiting for
	// candidate gathering to complete. The context bounds the wait.
	CreateOffer(ctx context.Context) (Description, error)

	// SetAnswer applies the remote session description returned by the
	// signaling exchange.
	SetAnswer(desc Description) error

	// OnStateChange registers the handler invoked on every peer connection
	// state transition.
	OnStateChange(func(PeerState))

	// Close tears down the peer connection and with it every channel it
	// carries. Safe to call more than once.
	Close() error
}

// Dialer constructs new peer connections. The session manager depends on
// this interface so tests can inject scripted peers.
type Dialer interface {
	NewPeer() (Peer, error)
}
