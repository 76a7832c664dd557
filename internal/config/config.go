// Package config owns everything the engine reads from disk: the engine's
// own YAML configuration and the JSON flow documents (call flow, web API
// endpoint catalog, agent extensions, recording types) served to handlers
// through the [Store].
//
// Flow documents hot-reload: the store probes file mtimes, re-parses only on
// change, validates, and publishes atomically by pointer swap. A failed
// reload keeps the last good document in place.
package config

import (
	"time"
)

// Default flow file names. These are the literal names the flow editor
// exports under the switch's script directory.
const (
	DefaultIVRFile        = "ivrconfig (3).json"
	DefaultWebAPIFile     = "automax_webAPIConfig (2).json"
	DefaultExtensionsFile = "Extensions_qa.json"
	DefaultRecordingFile  = "RecordingType_qa.json"
)

// LogLevel is the configured logging verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether the level is one of the recognised values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the engine's YAML configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Switch SwitchConfig `yaml:"switch"`
	Flows  FlowsConfig  `yaml:"flows"`
	Engine EngineConfig `yaml:"engine"`
	Auth   AuthConfig   `yaml:"auth"`
}

// ServerConfig tunes the diagnostics HTTP server (health, metrics).
type ServerConfig struct {
	// ListenAddr is the bind address for /healthz, /readyz and /metrics.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel selects the slog verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`
}

// SwitchConfig selects and tunes the softswitch platform adapter.
type SwitchConfig struct {
	// Platform names the adapter: "eventsock" or "mock".
	Platform string `yaml:"platform"`

	// ListenAddr is where the event-socket adapter accepts switch
	// connections.
	ListenAddr string `yaml:"listen_addr"`

	// ScriptDir overrides the script_dir switch global. Flow documents are
	// resolved relative to it.
	ScriptDir string `yaml:"script_dir"`

	// SoundsDir overrides the sounds_dir switch global.
	SoundsDir string `yaml:"sounds_dir"`
}

// FlowsConfig names the flow documents and tunes hot-reload.
type FlowsConfig struct {
	// PollInterval is how often the store probes file mtimes. Zero disables
	// background polling.
	PollInterval time.Duration `yaml:"poll_interval"`

	IVRFile        string `yaml:"ivr_file"`
	WebAPIFile     string `yaml:"webapi_file"`
	ExtensionsFile string `yaml:"extensions_file"`
	RecordingFile  string `yaml:"recording_file"`
}

// EngineConfig tunes the call-flow interpreter.
type EngineConfig struct {
	// VisitBudget caps visits to a single node per call. Defaults to 10.
	VisitBudget int `yaml:"visit_budget"`

	// TTSEngine and TTSVoice are the fallback TTS parameters when the flow's
	// general settings carry none.
	TTSEngine string `yaml:"tts_engine"`
	TTSVoice  string `yaml:"tts_voice"`
}

// AuthConfig configures OAuth2 client-credentials acquisition for outbound
// web API calls.
type AuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`

	// InsecureSkipVerify disables TLS certificate verification on the token
	// endpoint. Only for lab switches with self-signed certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// applyDefaults fills zero values with the documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Switch.Platform == "" {
		c.Switch.Platform = "eventsock"
	}
	if c.Switch.ListenAddr == "" {
		c.Switch.ListenAddr = ":9090"
	}
	if c.Flows.PollInterval == 0 {
		c.Flows.PollInterval = 5 * time.Second
	}
	if c.Flows.IVRFile == "" {
		c.Flows.IVRFile = DefaultIVRFile
	}
	if c.Flows.WebAPIFile == "" {
		c.Flows.WebAPIFile = DefaultWebAPIFile
	}
	if c.Flows.ExtensionsFile == "" {
		c.Flows.ExtensionsFile = DefaultExtensionsFile
	}
	if c.Flows.RecordingFile == "" {
		c.Flows.RecordingFile = DefaultRecordingFile
	}
	if c.Engine.VisitBudget == 0 {
		c.Engine.VisitBudget = 10
	}
	if c.Engine.TTSEngine == "" {
		c.Engine.TTSEngine = "flite"
	}
	if c.Engine.TTSVoice == "" {
		c.Engine.TTSVoice = "slt"
	}
}
