package netprobe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/stun"

	"github.com/wavesend/wavesend/internal/logging"
)

func TestHostPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"stun:stun.l.google.com:19302", "stun.l.google.com:19302"},
		{"stuns:stun.example.com:5349", "stun.example.com:5349"},
		{"stun.example.com:3478", "stun.example.com:3478"},
		{"stun.example.com", "stun.example.com:3478"},
		{"stun:stun.example.com", "stun.example.com:3478"},
		{"  stun:stun.example.com:3478 ", "stun.example.com:3478"},
	}
	for _, tt := range tests {
		if got := HostPort(tt.in); got != tt.want {
			t.Errorf("HostPort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// fakeStunServer answers binding requests on a loopback UDP socket with the
// given mapped address.
func fakeStunServer(t *testing.T, mapped *net.UDPAddr) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
			if err := req.Decode(); err != nil {
				continue
			}
			res := stun.MustBuild(
				stun.NewTransactionIDSetter(req.TransactionID),
				stun.BindingSuccess,
				&stun.XORMappedAddress{IP: mapped.IP, Port: mapped.Port},
			)
			conn.WriteToUDP(res.Raw, from)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestProbe(t *testing.T) {
	mapped := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 7), Port: 40000}
	server := fakeStunServer(t, mapped)

	result, err := Probe(context.Background(), Config{
		StunServers: []string{server.String()},
		Timeout:     time.Second,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !result.Reachable() {
		t.Fatal("result not reachable")
	}
	if got := result.PublicAddrs[0].String(); got != mapped.String() {
		t.Errorf("public addr = %s, want %s", got, mapped.String())
	}
}

func TestProbe_NoServersReachable(t *testing.T) {
	// A socket that never answers.
	dead, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer dead.Close()

	_, err = Probe(context.Background(), Config{
		StunServers: []string{dead.LocalAddr().String()},
		Timeout:     50 * time.Millisecond,
	}, logging.Discard())
	if !errors.Is(err, ErrNoServersReachable) {
		t.Errorf("err = %v, want ErrNoServersReachable", err)
	}
}
