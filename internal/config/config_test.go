package config

import (
	"flag"
	"testing"
	"time"
)

func TestParseServerConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{})

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %s, want :8080", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.MaxSessions != 1000 {
		t.Errorf("MaxSessions = %d, want 1000", cfg.MaxSessions)
	}
}

func TestParseServerConfig_Flags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{
		"-addr", ":9000",
		"-session-ttl", "5m",
		"-max-sessions", "10",
	})

	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %s, want :9000", cfg.Addr)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("SessionTTL = %v, want 5m", cfg.SessionTTL)
	}
	if cfg.MaxSessions != 10 {
		t.Errorf("MaxSessions = %d, want 10", cfg.MaxSessions)
	}
}

func TestParseServerConfig_Env(t *testing.T) {
	t.Setenv("WAVESEND_ADDR", ":7070")
	t.Setenv("WAVESEND_SESSION_TTL", "10m")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{})

	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %s, want :7070 from env", cfg.Addr)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("SessionTTL = %v, want 10m from env", cfg.SessionTTL)
	}

	// Flags still win over environment.
	fs2 := flag.NewFlagSet("test2", flag.ContinueOnError)
	cfg2 := parseServerConfigWithFlagSet(fs2, []string{"-addr", ":6060"})
	if cfg2.Addr != ":6060" {
		t.Errorf("Addr = %s, want flag to override env", cfg2.Addr)
	}
}

func TestParseClientConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, rest := parseClientConfigWithFlagSet(fs, []string{})

	if len(rest) != 0 {
		t.Errorf("rest = %v, want empty", rest)
	}
	if cfg.ServerURL != "http://localhost:8080" {
		t.Errorf("ServerURL = %s", cfg.ServerURL)
	}
	if cfg.SignalMode != "ws" {
		t.Errorf("SignalMode = %s, want ws", cfg.SignalMode)
	}
	if cfg.ChunkSize != 16*1024 {
		t.Errorf("ChunkSize = %d, want 16384", cfg.ChunkSize)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.PeerID == "" {
		t.Error("PeerID should be generated")
	}
}

func TestParseClientConfig_ServerLists(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, _ := parseClientConfigWithFlagSet(fs, []string{
		"-stun-server", "stun:a:3478,stun:b:3478",
		"-stun-server", "stun:c:3478",
		"-turn-server", "turn:user:pass@relay:3478",
	})

	if len(cfg.StunServers) != 3 {
		t.Fatalf("StunServers = %v, want 3 entries", cfg.StunServers)
	}
	if cfg.StunServers[2] != "stun:c:3478" {
		t.Errorf("StunServers[2] = %s", cfg.StunServers[2])
	}
	if len(cfg.TurnServers) != 1 {
		t.Fatalf("TurnServers = %v, want 1 entry", cfg.TurnServers)
	}
}

func TestParseClientConfig_InvalidModeFallsBack(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, _ := parseClientConfigWithFlagSet(fs, []string{"-signal", "carrier-pigeon"})
	if cfg.SignalMode != "ws" {
		t.Errorf("SignalMode = %s, want ws fallback", cfg.SignalMode)
	}
}

func TestParseClientConfig_PositionalArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_, rest := parseClientConfigWithFlagSet(fs, []string{"-out-dir", "/tmp", "report.pdf"})
	if len(rest) != 1 || rest[0] != "report.pdf" {
		t.Errorf("rest = %v, want [report.pdf]", rest)
	}
}
