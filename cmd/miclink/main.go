// Command miclink streams microphone audio to a remote transcription server
// over WebRTC and prints the transcription it sends back.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/miclink/miclink/internal/capture"
	"github.com/miclink/miclink/internal/config"
	"github.com/miclink/miclink/internal/health"
	"github.com/miclink/miclink/internal/observe"
	"github.com/miclink/miclink/internal/session"
	"github.com/miclink/miclink/internal/signaling"
	"github.com/miclink/miclink/pkg/transport/pion"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it at
	// runtime.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load configuration ────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(d config.ConfigDiff, cfg *config.Config) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.SignalingChanged || d.TransportChanged {
			slog.Warn("signaling/transport changes take effect on the next connect")
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "miclink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "miclink: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()

	cfg := watcher.Current()
	level.Set(slogLevel(cfg.Server.LogLevel))

	slog.Info("miclink starting",
		"version", version,
		"config", *configPath,
		"signaling_url", cfg.Signaling.URL,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Session manager ───────────────────────────────────────────────────────
	backend := capture.MalgoBackend{}
	dialer := pion.New(pion.WithSTUNServers(cfg.Transport.STUNServers...))
	signaler := signaling.New(cfg.Signaling.URL)

	manager := session.NewManager(dialer, signaler, backend,
		session.WithMetrics(metrics),
		session.WithCaptureConfig(capture.Config{
			ChunkSamples: cfg.Audio.ChunkSamples,
			TargetRate:   cfg.Audio.TargetRate,
			Options: capture.Options{
				Device:           cfg.Audio.Device,
				EchoCancellation: cfg.Audio.EchoCancellation,
				NoiseSuppression: cfg.Audio.NoiseSuppression,
				AutoGain:         cfg.Audio.AutoGain,
			},
		}),
	)
	defer manager.Disconnect()

	g, gctx := errgroup.WithContext(ctx)

	// ── Debug HTTP server (metrics + health) ──────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(
			health.CaptureDevices(backend),
			health.Signaling(cfg.Signaling.URL, nil),
		).Register(mux)

		srv := &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: observe.Middleware(metrics)(mux),
		}
		g.Go(func() error {
			slog.Info("debug server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// ── Interactive loop ──────────────────────────────────────────────────────
	g.Go(func() error {
		repl(gctx, manager)
		stop() // a quit command shuts the whole process down
		return nil
	})

	slog.Info("ready — type 'help' for commands")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// repl reads commands from stdin until EOF, a quit command, or context
// cancellation.
func repl(ctx context.Context, m *session.Manager) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := dispatch(ctx, m, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// dispatch executes one command line. It returns true when the user asked to
// quit.
func dispatch(ctx context.Context, m *session.Manager, cmd string) bool {
	switch cmd {
	case "":
	case "connect":
		if err := m.Connect(ctx); err != nil {
			fmt.Printf("connect failed: %v\n", err)
		} else {
			fmt.Println("connecting...")
		}
	case "record":
		if err := m.StartRecording(); err != nil {
			fmt.Printf("record failed: %v\n", err)
		} else {
			fmt.Println("recording")
		}
	case "stop":
		if err := m.StopRecording(); err != nil {
			fmt.Printf("stop failed: %v\n", err)
		} else {
			fmt.Println("stopped")
		}
	case "status":
		printStatus(m.Snapshot())
	case "transcript":
		fmt.Println(m.Transcript())
	case "disconnect":
		m.Disconnect()
		fmt.Println("disconnected")
	case "quit", "exit":
		return true
	case "help":
		fmt.Println("commands: connect, record, stop, status, transcript, disconnect, quit")
	default:
		fmt.Printf("unknown command %q — type 'help'\n", cmd)
	}
	return false
}

func printStatus(s session.Snapshot) {
	fmt.Printf("state: %s\n", s.State)
	if s.Err != "" {
		fmt.Printf("error: %s\n", s.Err)
	}
	fmt.Printf("peer: %s  audio open: %t  transcription open: %t  dropped frames: %d\n",
		s.Peer, s.AudioOpen, s.TextOpen, s.FrameDrops)
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
