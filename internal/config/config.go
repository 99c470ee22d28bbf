package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/wavesend/wavesend/pkg/protocol"
)

// ServerConfig holds configuration for the waveserv binary.
type ServerConfig struct {
	Addr                 string
	LogLevel             string
	SessionTTL           time.Duration
	SweepInterval        time.Duration
	MaxSessions          int
	MaxMessageBytes      int
	WSIdleTimeout        time.Duration
	SessionCreatesPerMin int
	SessionCreatesBurst  int
	WSConnectsPerMin     int
	WSConnectsBurst      int
}

// Signaling modes accepted by the -signal flag.
const (
	SignalModeWS   = "ws"
	SignalModePoll = "poll"
)

// ClientConfig holds configuration for the wave client binary.
type ClientConfig struct {
	ServerURL    string
	LogLevel     string
	PeerID       string
	Code         string
	SignalMode   string // "ws" (relay-push) or "poll" (relay-pull)
	PollInterval time.Duration
	ChunkSize    int
	OutDir       string
	StunServers  []string
	TurnServers  []string
}

// ParseServerConfig parses server configuration from flags and environment
// variables. Flags take precedence over environment variables.
func ParseServerConfig() ServerConfig {
	return parseServerConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseServerConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseServerConfigWithFlagSet(fs *flag.FlagSet, args []string) ServerConfig {
	cfg := ServerConfig{
		Addr:                 ":8080",
		LogLevel:             "info",
		SessionTTL:           30 * time.Minute,
		SweepInterval:        time.Minute,
		MaxSessions:          1000,
		MaxMessageBytes:      64 * 1024,
		WSIdleTimeout:        10 * time.Minute,
		SessionCreatesPerMin: 10,
		SessionCreatesBurst:  5,
		WSConnectsPerMin:     30,
		WSConnectsBurst:      10,
	}

	// Read from environment first
	if addr := os.Getenv("WAVESEND_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if logLevel := os.Getenv("WAVESEND_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if ttl := os.Getenv("WAVESEND_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	// Flags override environment
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "server address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session lifetime")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "expired session sweep interval")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "max concurrent sessions")
	fs.IntVar(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "max websocket message size")
	fs.DurationVar(&cfg.WSIdleTimeout, "ws-idle-timeout", cfg.WSIdleTimeout, "websocket idle timeout")
	fs.IntVar(&cfg.SessionCreatesPerMin, "session-creates-per-min", cfg.SessionCreatesPerMin, "max session creates per minute per IP (0 disables)")
	fs.IntVar(&cfg.SessionCreatesBurst, "session-creates-burst", cfg.SessionCreatesBurst, "burst session creates per IP")
	fs.IntVar(&cfg.WSConnectsPerMin, "ws-connects-per-min", cfg.WSConnectsPerMin, "max websocket connects per minute per IP (0 disables)")
	fs.IntVar(&cfg.WSConnectsBurst, "ws-connects-burst", cfg.WSConnectsBurst, "burst websocket connects per IP")
	fs.Parse(args)

	return cfg
}

// ParseClientConfig parses client configuration from flags and environment
// variables. Flags take precedence over environment variables. The second
// return value holds the positional arguments left after flag parsing.
func ParseClientConfig(args []string) (ClientConfig, []string) {
	fs := flag.NewFlagSet("wave", flag.ExitOnError)
	return parseClientConfigWithFlagSet(fs, args)
}

// parseClientConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseClientConfigWithFlagSet(fs *flag.FlagSet, args []string) (ClientConfig, []string) {
	cfg := ClientConfig{
		ServerURL:    "http://localhost:8080",
		LogLevel:     "info",
		PeerID:       protocol.NewPeerID(),
		SignalMode:   SignalModeWS,
		PollInterval: time.Second,
		ChunkSize:    16 * 1024,
		OutDir:       ".",
	}

	// Read from environment first
	if serverURL := os.Getenv("WAVESEND_SERVER_URL"); serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if logLevel := os.Getenv("WAVESEND_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if peerID := os.Getenv("WAVESEND_PEER_ID"); peerID != "" {
		cfg.PeerID = peerID
	}

	stunServers := make([]string, 0)
	turnServers := make([]string, 0)

	// Flags override environment
	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "server URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.PeerID, "peer-id", cfg.PeerID, "peer identifier")
	fs.StringVar(&cfg.Code, "code", cfg.Code, "session code")
	fs.StringVar(&cfg.SignalMode, "signal", cfg.SignalMode, "signaling mode: ws or poll")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "polling interval in poll mode")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "chunk size in bytes for file transfer")
	fs.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "output directory (receiver)")
	fs.Var((*stringSlice)(&stunServers), "stun-server", "STUN server URL (repeatable, comma-separated)")
	fs.Var((*stringSlice)(&turnServers), "turn-server", "TURN server URL (repeatable, comma-separated)")
	fs.Parse(args)

	for _, s := range stunServers {
		cfg.StunServers = append(cfg.StunServers, splitServers(s)...)
	}
	for _, s := range turnServers {
		cfg.TurnServers = append(cfg.TurnServers, splitServers(s)...)
	}

	if cfg.SignalMode != SignalModeWS && cfg.SignalMode != SignalModePoll {
		cfg.SignalMode = SignalModeWS
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 16 * 1024
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return cfg, fs.Args()
}

// DefaultStunServers is used when no STUN servers are configured.
var DefaultStunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun.cloudflare.com:3478",
}

func splitServers(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stringSlice implements flag.Value for repeatable string flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

var _ flag.Value = (*stringSlice)(nil)
