package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miclink/miclink/internal/capture"
)

func TestCaptureDevices_Healthy(t *testing.T) {
	backend := &capture.FakeBackend{Ctx: capture.NewFakeContext(48000, 1)}
	c := CaptureDevices(backend)

	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check: %v, want nil", err)
	}
	if !backend.Ctx.Closed() {
		t.Error("probe should close its capture context")
	}
}

func TestCaptureDevices_NoDevices(t *testing.T) {
	ctx := capture.NewFakeContext(48000, 1)
	ctx.DeviceList = nil
	c := CaptureDevices(&capture.FakeBackend{Ctx: ctx})

	if err := c.Check(context.Background()); err == nil {
		t.Error("Check = nil, want error when no devices are available")
	}
}

func TestSignaling_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The offer endpoint rejects GETs; reachability is all that counts.
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	c := Signaling(srv.URL+"/offer", srv.Client())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check: %v, want nil", err)
	}
}

func TestSignaling_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := Signaling(srv.URL+"/offer", nil)
	if err := c.Check(context.Background()); err == nil {
		t.Error("Check = nil, want error for unreachable server")
	}
}
