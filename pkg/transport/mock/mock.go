// Package mock provides scriptable [transport.Peer], [transport.Channel],
// and [transport.Dialer] implementations for tests. Tests drive channel and
// peer lifecycle events through the Fire* methods and inspect sent traffic
// through the recorded message slices.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/miclink/miclink/pkg/transport"
)

// Channel is a scriptable [transport.Channel].
type Channel struct {
	label string

	mu        sync.Mutex
	open      bool
	sent      [][]byte
	sendErr   error
	onOpen    func()
	onClose   func()
	onError   func(error)
	onMessage func([]byte)
}

// NewChannel creates a closed mock channel with the given label.
func NewChannel(label string) *Channel {
	return &Channel{label: label}
}

func (c *Channel) Label() string { return c.label }

func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	return nil
}

func (c *Channel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Channel) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

func (c *Channel) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *Channel) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func (c *Channel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// SetSendErr makes subsequent Send calls fail with err.
func (c *Channel) SetSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Sent returns a snapshot of every message sent on the channel.
func (c *Channel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// FireOpen marks the channel open and invokes the registered open handler.
func (c *Channel) FireOpen() {
	c.mu.Lock()
	c.open = true
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireClose marks the channel closed and invokes the registered close handler.
func (c *Channel) FireClose() {
	c.mu.Lock()
	c.open = false
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireError invokes the registered error handler.
func (c *Channel) FireError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// FireMessage delivers an inbound payload to the registered message handler.
func (c *Channel) FireMessage(data []byte) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// Peer is a scriptable [transport.Peer].
type Peer struct {
	// Offer is returned by CreateOffer. A default stub is used when empty.
	Offer transport.Description

	// OfferErr, AnswerErr and ChannelErr make the corresponding methods fail.
	OfferErr   error
	AnswerErr  error
	ChannelErr error

	mu       sync.Mutex
	channels map[string]*Channel
	answer   *transport.Description
	onState  func(transport.PeerState)
	closed   bool
}

// NewPeer creates an idle mock peer.
func NewPeer() *Peer {
	return &Peer{channels: make(map[string]*Channel)}
}

func (p *Peer) CreateChannel(label string) (transport.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ChannelErr != nil {
		return nil, p.ChannelErr
	}
	if _, exists := p.channels[label]; exists {
		return nil, fmt.Errorf("mock: channel %q already exists", label)
	}
	ch := NewChannel(label)
	p.channels[label] = ch
	return ch, nil
}

func (p *Peer) CreateOffer(_ context.Context) (transport.Description, error) {
	if p.OfferErr != nil {
		return transport.Description{}, p.OfferErr
	}
	if p.Offer.SDP == "" {
		return transport.Description{SDP: "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n", Type: "offer"}, nil
	}
	return p.Offer, nil
}

func (p *Peer) SetAnswer(desc transport.Description) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AnswerErr != nil {
		return p.AnswerErr
	}
	p.answer = &desc
	return nil
}

func (p *Peer) OnStateChange(fn func(transport.PeerState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Channel returns the mock channel created with the given label, or nil.
func (p *Peer) Channel(label string) *Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[label]
}

// Answer returns the applied remote description, or nil when none was set.
func (p *Peer) Answer() *transport.Description {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answer
}

// Closed reports whether Close has been called.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// FireState invokes the registered state-change handler.
func (p *Peer) FireState(state transport.PeerState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// Dialer hands out pre-constructed peers in order. When the queue is empty,
// NewPeer returns a fresh mock peer.
type Dialer struct {
	// Err makes NewPeer fail.
	Err error

	mu      sync.Mutex
	queue   []*Peer
	created []*Peer
}

// NewDialer creates a dialer that will hand out the given peers in order.
func NewDialer(peers ...*Peer) *Dialer {
	return &Dialer{queue: peers}
}

func (d *Dialer) NewPeer() (transport.Peer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var p *Peer
	if len(d.queue) > 0 {
		p = d.queue[0]
		d.queue = d.queue[1:]
	} else {
		p = NewPeer()
	}
	d.created = append(d.created, p)
	return p, nil
}

// Created returns every peer handed out so far.
func (d *Dialer) Created() []*Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Peer, len(d.created))
	copy(out, d.created)
	return out
}
