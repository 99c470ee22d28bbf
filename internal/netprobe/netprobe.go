// Package netprobe discovers the client's public address via STUN before a
// transfer starts. A probe that resolves nothing is an early hint that no
// direct route to the peer is likely and a TURN relay should be configured;
// the connection logic still runs either way.
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pion/stun"
)

// DefaultTimeout bounds the wait for each STUN server's response.
const DefaultTimeout = 500 * time.Millisecond

// stunPort is the default STUN port used when a server omits one.
const stunPort = 3478

// ErrNoServersReachable means no configured STUN server produced a mapped
// address.
var ErrNoServersReachable = errors.New("no STUN servers reachable")

// Config holds the probe parameters.
type Config struct {
	// StunServers in "stun:host:port", "host:port" or "host" form.
	StunServers []string
	// Timeout per server. DefaultTimeout when zero.
	Timeout time.Duration
}

// Result is what the probe learned about the local network.
type Result struct {
	LocalAddr   net.Addr
	PublicAddrs []*net.UDPAddr
}

// Reachable reports whether at least one public mapping was discovered.
func (r Result) Reachable() bool {
	return len(r.PublicAddrs) > 0
}

// Probe opens a throwaway UDP socket and asks each configured STUN server
// for the socket's public mapping. Servers are tried in order; every
// distinct mapping is collected. Returns ErrNoServersReachable when none
// answered.
func Probe(ctx context.Context, cfg Config, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{})
	}
	if err != nil {
		return Result{}, fmt.Errorf("open probe socket: %w", err)
	}
	defer conn.Close()

	result := Result{LocalAddr: conn.LocalAddr()}
	seen := make(map[string]struct{})

	for _, server := range cfg.StunServers {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		addrs, err := resolveServer(ctx, server)
		if err != nil {
			logger.Warn("invalid STUN server", "server", server, "error", err)
			continue
		}
		for _, addr := range addrs {
			mapped, err := bindingRequest(conn, addr, timeout)
			if err != nil {
				logger.Debug("STUN binding failed", "server", addr.String(), "error", err)
				continue
			}
			key := mapped.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.PublicAddrs = append(result.PublicAddrs, mapped)
			logger.Info("public address resolved", "addr", mapped, "server", server)
		}
	}

	if !result.Reachable() {
		return result, ErrNoServersReachable
	}
	return result, nil
}

// bindingRequest runs one STUN binding transaction on conn and extracts the
// mapped address from the response.
func bindingRequest(conn *net.UDPConn, server *net.UDPAddr, timeout time.Duration) (*net.UDPAddr, error) {
	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.WriteToUDP(msg.Raw, server); err != nil {
		return nil, fmt.Errorf("send binding request: %w", err)
	}

	buf := make([]byte, 1024)
	conn.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := conn.ReadFromUDP(buf)
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("read binding response: %w", err)
	}

	res := &stun.Message{Raw: buf[:n]}
	if err := res.Decode(); err != nil {
		return nil, fmt.Errorf("decode binding response: %w", err)
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}
	var mappedAddr stun.MappedAddress
	if err := mappedAddr.GetFrom(res); err != nil {
		return nil, fmt.Errorf("response carries no mapped address: %w", err)
	}
	return &net.UDPAddr{IP: mappedAddr.IP, Port: mappedAddr.Port}, nil
}

// resolveServer turns a configured server spelling into dialable UDP
// addresses, one per resolved IP.
func resolveServer(ctx context.Context, server string) ([]*net.UDPAddr, error) {
	hostport := HostPort(server)
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", server, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse port in %q: %w", server, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	addrs := make([]*net.UDPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, &net.UDPAddr{IP: ip.IP, Port: port})
	}
	return addrs, nil
}

// HostPort strips an optional stun:/stuns: scheme and appends the default
// STUN port when none is present.
func HostPort(server string) string {
	s := strings.TrimSpace(server)
	s = strings.TrimPrefix(s, "stuns:")
	s = strings.TrimPrefix(s, "stun:")
	if _, _, err := net.SplitHostPort(s); err != nil {
		s = net.JoinHostPort(s, strconv.Itoa(stunPort))
	}
	return s
}
