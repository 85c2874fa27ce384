// Package pion implements the [transport.Peer] and [transport.Channel]
// interfaces over WebRTC using pion/webrtc. Channels are created ordered so
// frames arrive in send order; delivery remains unacknowledged, matching the
// best-effort contract of the audio path.
package pion

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/miclink/miclink/pkg/transport"
)

// Compile-time interface assertions.
var (
	_ transport.Dialer  = (*Dialer)(nil)
	_ transport.Peer    = (*Peer)(nil)
	_ transport.Channel = (*Channel)(nil)
)

// Option configures a [Dialer].
type Option func(*Dialer)

// WithSTUNServers sets the STUN server URLs used during ICE negotiation.
// Defaults to ["stun:stun.l.google.com:19302"].
func WithSTUNServers(servers ...string) Option {
	return func(d *Dialer) {
		d.stunServers = servers
	}
}

// Dialer creates pion-backed peer connections with a fixed rendezvous
// configuration. Safe for concurrent use.
type Dialer struct {
	stunServers []string // immutable after New
}

// New creates a Dialer with the given options applied.
func New(opts ...Option) *Dialer {
	d := &Dialer{
		stunServers: []string{"stun:stun.l.google.com:19302"},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// NewPeer constructs a new peer connection using the dialer's STUN servers.
func (d *Dialer) NewPeer() (transport.Peer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: d.stunServers},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pion: new peer connection: %w", err)
	}
	return &Peer{pc: pc}, nil
}

// Peer wraps a [webrtc.PeerConnection].
type Peer struct {
	pc *webrtc.PeerConnection
}

// CreateChannel creates an ordered data channel with the given label.
func (p *Peer) CreateChannel(label string) (transport.Channel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("pion: create channel %q: %w", label, err)
	}
	return &Channel{dc: dc}, nil
}

// CreateOffer generates the local session description and waits for ICE
// candidate gathering to complete, so the returned SDP carries every
// candidate and no trickle signaling is needed.
func (p *Peer) CreateOffer(ctx context.Context) (transport.Description, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return transport.Description{}, fmt.Errorf("pion: create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return transport.Description{}, fmt.Errorf("pion: set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return transport.Description{}, fmt.Errorf("pion: candidate gathering: %w", ctx.Err())
	}

	local := p.pc.LocalDescription()
	if local == nil {
		return transport.Description{}, fmt.Errorf("pion: no local description after gathering")
	}
	return transport.Description{SDP: local.SDP, Type: local.Type.String()}, nil
}

// SetAnswer applies the remote answer description.
func (p *Peer) SetAnswer(desc transport.Description) error {
	sdpType := webrtc.NewSDPType(desc.Type)
	if sdpType != webrtc.SDPTypeAnswer {
		return fmt.Errorf("pion: unexpected remote description type %q", desc.Type)
	}
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP}); err != nil {
		return fmt.Errorf("pion: set remote description: %w", err)
	}
	return nil
}

// OnStateChange registers fn for peer connection state transitions.
func (p *Peer) OnStateChange(fn func(transport.PeerState)) {
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(mapState(s))
	})
}

// Close tears down the peer connection and implicitly closes its channels.
func (p *Peer) Close() error {
	return p.pc.Close()
}

// mapState converts a pion connection state to the transport taxonomy.
func mapState(s webrtc.PeerConnectionState) transport.PeerState {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		return transport.PeerConnected
	case webrtc.PeerConnectionStateDisconnected:
		return transport.PeerDisconnected
	case webrtc.PeerConnectionStateFailed:
		return transport.PeerFailed
	case webrtc.PeerConnectionStateClosed:
		return transport.PeerClosed
	default:
		return transport.PeerNew
	}
}

// Channel wraps a [webrtc.DataChannel].
type Channel struct {
	dc *webrtc.DataChannel
}

func (c *Channel) Label() string { return c.dc.Label() }

func (c *Channel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *Channel) Open() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *Channel) OnOpen(fn func()) {
	c.dc.OnOpen(fn)
}

func (c *Channel) OnClose(fn func()) {
	c.dc.OnClose(fn)
}

func (c *Channel) OnError(fn func(error)) {
	c.dc.OnError(fn)
}

func (c *Channel) OnMessage(fn func([]byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}
