package config

import "slices"

// ConfigDiff describes what changed between two configs. Log level and audio
// settings can be applied without a restart; signaling and transport changes
// only take effect on the next connect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AudioChanged is true when any capture setting changed. The new
	// settings are picked up by the next StartRecording.
	AudioChanged bool

	// SignalingChanged and TransportChanged flag settings that require a
	// reconnect to take effect.
	SignalingChanged bool
	TransportChanged bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.AudioChanged || d.SignalingChanged || d.TransportChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Audio != new.Audio {
		d.AudioChanged = true
	}

	if old.Signaling != new.Signaling {
		d.SignalingChanged = true
	}

	if !slices.Equal(old.Transport.STUNServers, new.Transport.STUNServers) {
		d.TransportChanged = true
	}

	return d
}
