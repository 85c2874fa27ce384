// Package signaling implements the out-of-band offer/answer exchange with
// the remote recognition server. The protocol is a single HTTP POST: the
// request body carries the local offer as JSON {sdp, type} and a 2xx
// response carries the remote answer in the same shape. Any other outcome
// is a fatal [*Error].
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/miclink/miclink/pkg/transport"
)

// description is the wire form of a session description.
type description struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Error describes a failed signaling exchange. It is fatal to the
// connection attempt: the session layer tears everything down on receipt.
type Error struct {
	// StatusCode is the HTTP status returned by the endpoint, or 0 when the
	// request never produced a response.
	StatusCode int

	// Reason is a human-readable description of the failure.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signaling: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signaling: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for the exchange. Useful in
// tests and for callers that want to impose their own transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client performs offer/answer exchanges against a fixed endpoint.
//
// No request timeout is imposed beyond the caller's context; the exchange
// protocol itself defines none.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a Client posting to the given endpoint URL.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Exchange submits the local offer and returns the remote answer.
func (c *Client) Exchange(ctx context.Context, offer transport.Description) (transport.Description, error) {
	body, err := json.Marshal(description{SDP: offer.SDP, Type: offer.Type})
	if err != nil {
		return transport.Description{}, &Error{Reason: "encode offer", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return transport.Description{}, &Error{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transport.Description{}, &Error{Reason: "post offer", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return transport.Description{}, &Error{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("endpoint returned %s", resp.Status),
		}
	}

	var answer description
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return transport.Description{}, &Error{
			StatusCode: resp.StatusCode,
			Reason:     "decode answer",
			Err:        err,
		}
	}
	if answer.SDP == "" || answer.Type == "" {
		return transport.Description{}, &Error{
			StatusCode: resp.StatusCode,
			Reason:     "answer is missing sdp or type",
		}
	}
	return transport.Description{SDP: answer.SDP, Type: answer.Type}, nil
}
