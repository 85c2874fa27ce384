// Package config provides the configuration schema, loader, and file watcher
// for the miclink client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for miclink.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Signaling SignalingConfig `yaml:"signaling"`
	Transport TransportConfig `yaml:"transport"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig holds settings for the local debug HTTP server and logging.
type ServerConfig struct {
	// ListenAddr is the TCP address the metrics/health server listens on
	// (e.g., ":8089"). Empty disables the debug server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// SignalingConfig describes the transcription server's signaling endpoint.
type SignalingConfig struct {
	// URL is the offer/answer exchange endpoint
	// (e.g., "http://localhost:8080/offer").
	URL string `yaml:"url"`
}

// TransportConfig holds WebRTC transport settings.
type TransportConfig struct {
	// STUNServers lists STUN server URLs used for candidate gathering
	// (e.g., "stun:stun.l.google.com:19302").
	STUNServers []string `yaml:"stun_servers"`
}

// AudioConfig holds microphone capture and processing settings.
type AudioConfig struct {
	// Device selects the capture device by name substring. Empty uses the
	// system default microphone.
	Device string `yaml:"device"`

	// ChunkSamples is the number of capture samples accumulated before a
	// frame is resampled and sent.
	ChunkSamples int `yaml:"chunk_samples"`

	// TargetRate is the wire sample rate in Hz. The transcription server
	// expects 16000.
	TargetRate int `yaml:"target_rate"`

	// EchoCancellation, NoiseSuppression and AutoGain toggle the
	// corresponding capture processing on backends that support them.
	EchoCancellation bool `yaml:"echo_cancellation"`
	NoiseSuppression bool `yaml:"noise_suppression"`
	AutoGain         bool `yaml:"auto_gain"`
}

// Default returns the configuration used when a field is absent from the
// loaded file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8089",
			LogLevel:   LogInfo,
		},
		Signaling: SignalingConfig{
			URL: "http://localhost:8080/offer",
		},
		Transport: TransportConfig{
			STUNServers: []string{"stun:stun.l.google.com:19302"},
		},
		Audio: AudioConfig{
			ChunkSamples:     4096,
			TargetRate:       16000,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGain:         true,
		},
	}
}
