package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a lockstep session.
type Config struct {
	// TickInterval is the leader's per-tick cutoff for collecting commands.
	TickInterval time.Duration `yaml:"tick_interval"`
	// HeartbeatInterval is how often each side of a connection heartbeats.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// SuspectAfter is the silence after which a connection is Suspect.
	SuspectAfter time.Duration `yaml:"suspect_after"`
	// LostAfter is the additional silence after which a Suspect connection is Lost.
	LostAfter time.Duration `yaml:"lost_after"`
	// MaxSuspectDuration is how long a peer may stay Suspect before it is dropped.
	MaxSuspectDuration time.Duration `yaml:"max_suspect_duration"`
	// HistorySize is the number of recent batches kept to answer resyncs.
	HistorySize int `yaml:"history_size"`
	// ReorderWindow bounds how far ahead of the next tick batches are buffered.
	ReorderWindow int `yaml:"reorder_window"`
	// GapTimeout is how long buffered batches wait on a gap before a resync is requested.
	GapTimeout time.Duration `yaml:"gap_timeout"`
	MaxPeers   int           `yaml:"max_peers"`

	Workers           int           `yaml:"workers"`
	PoolQueueCapacity int           `yaml:"pool_queue_capacity"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace"`

	SendQueueSize int           `yaml:"send_queue_size"`
	MaxFrameSize  int           `yaml:"max_frame_size"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`

	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectMaxWait  time.Duration `yaml:"reconnect_max_wait"`
	ResendInterval    time.Duration `yaml:"resend_interval"`
	MaxProtocolErrors int           `yaml:"max_protocol_errors"`
	ResyncPerSecond   float64       `yaml:"resync_per_second"`

	// Transport is "tcp" or "ws".
	Transport string `yaml:"transport"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		TickInterval:       50 * time.Millisecond,
		HeartbeatInterval:  100 * time.Millisecond,
		SuspectAfter:       500 * time.Millisecond,
		LostAfter:          500 * time.Millisecond,
		MaxSuspectDuration: 5 * time.Second,
		HistorySize:        512,
		ReorderWindow:      64,
		GapTimeout:         time.Second,
		MaxPeers:           8,
		Workers:            4,
		PoolQueueCapacity:  0,
		ShutdownGrace:      2 * time.Second,
		SendQueueSize:      1024,
		MaxFrameSize:       1 << 20,
		DialTimeout:        3 * time.Second,
		WriteTimeout:       2 * time.Second,
		ReconnectAttempts:  5,
		ReconnectMaxWait:   time.Second,
		ResendInterval:     250 * time.Millisecond,
		MaxProtocolErrors:  16,
		ResyncPerSecond:    2,
		Transport:          "tcp",
	}
}

// env mirrors Config for environment overrides. Durations are strings
// parsed with time.ParseDuration.
type env struct {
	TickInterval       string  `config:"LOCKSTEP_TICK_INTERVAL"`
	HeartbeatInterval  string  `config:"LOCKSTEP_HEARTBEAT_INTERVAL"`
	SuspectAfter       string  `config:"LOCKSTEP_SUSPECT_AFTER"`
	LostAfter          string  `config:"LOCKSTEP_LOST_AFTER"`
	MaxSuspectDuration string  `config:"LOCKSTEP_MAX_SUSPECT_DURATION"`
	HistorySize        int     `config:"LOCKSTEP_HISTORY_SIZE"`
	ReorderWindow      int     `config:"LOCKSTEP_REORDER_WINDOW"`
	GapTimeout         string  `config:"LOCKSTEP_GAP_TIMEOUT"`
	MaxPeers           int     `config:"LOCKSTEP_MAX_PEERS"`
	Workers            int     `config:"LOCKSTEP_WORKERS"`
	PoolQueueCapacity  int     `config:"LOCKSTEP_POOL_QUEUE_CAPACITY"`
	ShutdownGrace      string  `config:"LOCKSTEP_SHUTDOWN_GRACE"`
	SendQueueSize      int     `config:"LOCKSTEP_SEND_QUEUE_SIZE"`
	MaxFrameSize       int     `config:"LOCKSTEP_MAX_FRAME_SIZE"`
	DialTimeout        string  `config:"LOCKSTEP_DIAL_TIMEOUT"`
	WriteTimeout       string  `config:"LOCKSTEP_WRITE_TIMEOUT"`
	ReconnectAttempts  int     `config:"LOCKSTEP_RECONNECT_ATTEMPTS"`
	ReconnectMaxWait   string  `config:"LOCKSTEP_RECONNECT_MAX_WAIT"`
	ResendInterval     string  `config:"LOCKSTEP_RESEND_INTERVAL"`
	MaxProtocolErrors  int     `config:"LOCKSTEP_MAX_PROTOCOL_ERRORS"`
	ResyncPerSecond    float64 `config:"LOCKSTEP_RESYNC_PER_SECOND"`
	Transport          string  `config:"LOCKSTEP_TRANSPORT"`
}

// Load returns the default configuration overlaid with the YAML file at
// path, if any, and then with LOCKSTEP_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var e env
	if err := jlconfig.FromEnv().To(&e); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"LOCKSTEP_TICK_INTERVAL", e.TickInterval, &c.TickInterval},
		{"LOCKSTEP_HEARTBEAT_INTERVAL", e.HeartbeatInterval, &c.HeartbeatInterval},
		{"LOCKSTEP_SUSPECT_AFTER", e.SuspectAfter, &c.SuspectAfter},
		{"LOCKSTEP_LOST_AFTER", e.LostAfter, &c.LostAfter},
		{"LOCKSTEP_MAX_SUSPECT_DURATION", e.MaxSuspectDuration, &c.MaxSuspectDuration},
		{"LOCKSTEP_GAP_TIMEOUT", e.GapTimeout, &c.GapTimeout},
		{"LOCKSTEP_SHUTDOWN_GRACE", e.ShutdownGrace, &c.ShutdownGrace},
		{"LOCKSTEP_DIAL_TIMEOUT", e.DialTimeout, &c.DialTimeout},
		{"LOCKSTEP_WRITE_TIMEOUT", e.WriteTimeout, &c.WriteTimeout},
		{"LOCKSTEP_RECONNECT_MAX_WAIT", e.ReconnectMaxWait, &c.ReconnectMaxWait},
		{"LOCKSTEP_RESEND_INTERVAL", e.ResendInterval, &c.ResendInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		value int
		dst   *int
	}{
		{e.HistorySize, &c.HistorySize},
		{e.ReorderWindow, &c.ReorderWindow},
		{e.MaxPeers, &c.MaxPeers},
		{e.Workers, &c.Workers},
		{e.PoolQueueCapacity, &c.PoolQueueCapacity},
		{e.SendQueueSize, &c.SendQueueSize},
		{e.MaxFrameSize, &c.MaxFrameSize},
		{e.ReconnectAttempts, &c.ReconnectAttempts},
		{e.MaxProtocolErrors, &c.MaxProtocolErrors},
	}
	for _, i := range ints {
		if i.value != 0 {
			*i.dst = i.value
		}
	}
	if e.ResyncPerSecond != 0 {
		c.ResyncPerSecond = e.ResyncPerSecond
	}
	if e.Transport != "" {
		c.Transport = e.Transport
	}
	return nil
}

// Validate rejects configurations the protocol cannot run with.
func (c Config) Validate() error {
	positive := map[string]time.Duration{
		"tick_interval":        c.TickInterval,
		"heartbeat_interval":   c.HeartbeatInterval,
		"suspect_after":        c.SuspectAfter,
		"lost_after":           c.LostAfter,
		"max_suspect_duration": c.MaxSuspectDuration,
		"gap_timeout":          c.GapTimeout,
		"shutdown_grace":       c.ShutdownGrace,
		"dial_timeout":         c.DialTimeout,
		"write_timeout":        c.WriteTimeout,
		"reconnect_max_wait":   c.ReconnectMaxWait,
		"resend_interval":      c.ResendInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.HistorySize <= 0 || c.ReorderWindow <= 0 {
		return errors.New("history_size and reorder_window must be positive")
	}
	if c.HistorySize < c.ReorderWindow {
		return errors.Errorf("history_size (%d) must not be smaller than reorder_window (%d)", c.HistorySize, c.ReorderWindow)
	}
	if c.MaxPeers <= 0 || c.Workers <= 0 || c.SendQueueSize <= 0 || c.MaxFrameSize <= 0 {
		return errors.New("max_peers, workers, send_queue_size and max_frame_size must be positive")
	}
	if c.ReconnectAttempts < 0 || c.MaxProtocolErrors < 0 || c.PoolQueueCapacity < 0 {
		return errors.New("reconnect_attempts, max_protocol_errors and pool_queue_capacity must not be negative")
	}
	if c.ResyncPerSecond <= 0 {
		return errors.Errorf("resync_per_second must be positive, got %v", c.ResyncPerSecond)
	}
	if c.Transport != "tcp" && c.Transport != "ws" {
		return errors.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}
