package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/miclink/miclink/internal/capture"
)

// CaptureDevices returns a checker that verifies at least one capture device
// can be enumerated through the backend. Each probe opens and closes its own
// capture context so a stale context never masks a device that went away.
func CaptureDevices(backend capture.Backend) Checker {
	return Checker{
		Name: "capture",
		Check: func(_ context.Context) error {
			cctx, err := backend.NewContext()
			if err != nil {
				return fmt.Errorf("init capture context: %w", err)
			}
			defer cctx.Close()

			devices, err := cctx.Devices()
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}
			if len(devices) == 0 {
				return errors.New("no capture devices available")
			}
			return nil
		},
	}
}

// Signaling returns a checker that verifies the signaling endpoint's host is
// reachable over HTTP. Any HTTP response counts as reachable; the offer
// endpoint itself only accepts POSTs.
func Signaling(endpoint string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: "signaling",
		Check: func(ctx context.Context) error {
			u, err := url.Parse(endpoint)
			if err != nil {
				return fmt.Errorf("parse endpoint: %w", err)
			}
			base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("signaling server unreachable: %w", err)
			}
			resp.Body.Close()
			return nil
		},
	}
}
