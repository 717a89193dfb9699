package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	DriverPion   = "pion"
	DriverMemory = "memory"
)

type Config struct {
	HTTPAddr         string
	RoomURL          string
	RoomDriver       string
	AgentIdentity    string
	IdentityPrefix   string
	LogLevel         zerolog.Level
	StaticDir        string
	ICEServers       []string
	MemoryAgentDelay time.Duration
	AnswerTimeout    time.Duration
	HandshakeTimeout time.Duration
}

func defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		RoomURL:          "ws://localhost:7880/rtc",
		RoomDriver:       DriverPion,
		AgentIdentity:    "ai-agent",
		IdentityPrefix:   "participant-",
		LogLevel:         zerolog.InfoLevel,
		StaticDir:        "./static",
		MemoryAgentDelay: time.Second,
		AnswerTimeout:    10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Load reads the configuration from the environment. Files listed in
// envFiles are loaded first when they exist; variables already set in the
// environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaults()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s: must not be negative", key)
		}
		*dst = d
		return nil
	}

	str("YACALL_HTTP_ADDR", &cfg.HTTPAddr)
	str("YACALL_ROOM_URL", &cfg.RoomURL)
	str("YACALL_ROOM_DRIVER", &cfg.RoomDriver)
	str("YACALL_AGENT_IDENTITY", &cfg.AgentIdentity)
	str("YACALL_STATIC_DIR", &cfg.StaticDir)
	if v, ok := lookup("YACALL_IDENTITY_PREFIX"); ok {
		cfg.IdentityPrefix = v
	}

	if v, ok := lookup("YACALL_LOG_LEVEL"); ok && v != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return nil, fmt.Errorf("YACALL_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}

	if v, ok := lookup("YACALL_ICE_SERVERS"); ok {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.ICEServers = append(cfg.ICEServers, s)
			}
		}
	}

	for key, dst := range map[string]*time.Duration{
		"YACALL_MEMORY_AGENT_DELAY": &cfg.MemoryAgentDelay,
		"YACALL_ANSWER_TIMEOUT":     &cfg.AnswerTimeout,
		"YACALL_HANDSHAKE_TIMEOUT":  &cfg.HandshakeTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return nil, err
		}
	}

	switch cfg.RoomDriver {
	case DriverPion, DriverMemory:
	default:
		return nil, fmt.Errorf("YACALL_ROOM_DRIVER: unknown driver %q", cfg.RoomDriver)
	}
	return &cfg, nil
}
