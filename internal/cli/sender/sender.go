// Package sender implements the `wave send` command: register a session,
// hand the code to the user, wait for the receiver, connect and stream the
// file.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/wavesend/wavesend/internal/config"
	"github.com/wavesend/wavesend/internal/logging"
	"github.com/wavesend/wavesend/internal/netprobe"
	"github.com/wavesend/wavesend/internal/progress"
	"github.com/wavesend/wavesend/internal/rtc"
	"github.com/wavesend/wavesend/internal/signaling"
	"github.com/wavesend/wavesend/internal/termio"
	"github.com/wavesend/wavesend/internal/transfer"
	"github.com/wavesend/wavesend/pkg/protocol"
)

// Run executes `wave send <path>`.
func Run(args []string) {
	if hasHelpFlag(args) {
		printUsage()
		return
	}
	cfg, rest := config.ParseClientConfig(args)
	if len(rest) != 1 {
		printUsage()
		os.Exit(2)
	}
	path := rest[0]

	logger := logging.New("wave-send", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "cannot read %s: %v\n", path, err)
		os.Exit(1)
	}
	if info.IsDir() {
		fmt.Fprintf(termio.Stderr(), "%s is a directory; only single files are supported\n", path)
		os.Exit(1)
	}

	stunServers := cfg.StunServers
	if len(stunServers) == 0 {
		stunServers = config.DefaultStunServers
	}

	api := signaling.NewAPIClient(cfg.ServerURL)
	created, err := api.CreateSession(ctx, filepath.Base(path), info.Size(), mimeTypeOf(path))
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "create session: %v\n", err)
		os.Exit(1)
	}
	code := created.Code
	// The sender owns the session; remove it on every exit path so the
	// code cannot be joined after this process is gone.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.DeleteSession(cleanupCtx, code); err != nil {
			logger.Warn("session cleanup failed", "code", code, "error", err)
		}
	}()

	fmt.Fprintf(termio.Stdout(), "session code: %s (expires %s)\n", code, created.ExpireAt.Local().Format(time.Kitchen))
	fmt.Fprintf(termio.Stdout(), "on the receiving machine run: wave receive %s\n", code)

	if result, err := netprobe.Probe(ctx, netprobe.Config{StunServers: stunServers}, logger); err != nil {
		if len(cfg.TurnServers) == 0 {
			fmt.Fprintln(termio.Stderr(), "no public address discovered via STUN; if the connection fails, configure --turn-server")
		}
		logger.Warn("network probe failed", "error", err)
	} else {
		logger.Info("public address discovered", "addr", result.PublicAddrs[0].String())
	}

	ch, err := openChannel(ctx, cfg, api, code, logger)
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "join signaling: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	factory, err := rtc.NewPionFactory(rtc.ICEConfig{
		StunServers: stunServers,
		TurnServers: cfg.TurnServers,
	}, logger)
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "invalid ICE configuration: %v\n", err)
		os.Exit(1)
	}
	conn := rtc.NewConnector(ch, factory, rtc.Config{Logger: logger})

	fmt.Fprintln(termio.Stdout(), "waiting for receiver...")
	if err := conn.WaitForPeer(ctx); err != nil {
		fmt.Fprintf(termio.Stderr(), "waiting for receiver: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(termio.Stdout(), "receiver joined, connecting...")
	tr, err := conn.Connect(ctx, protocol.RoleSender)
	if err != nil {
		if errors.Is(err, rtc.ErrNoRouteFound) {
			fmt.Fprintln(termio.Stderr(), "no network route to the receiver was found; add a --turn-server relay and try again")
		} else {
			fmt.Fprintf(termio.Stderr(), "connect: %v\n", err)
		}
		os.Exit(1)
	}
	defer tr.Close()
	// Negotiation is done; the relay room is no longer needed.
	_ = ch.Close()

	meter := progress.NewMeter()
	meter.Start(info.Size())
	line := progress.NewLine(termio.Stdout(), "sending")
	var lastSent int64

	snd := transfer.NewSender(tr, transfer.SendOptions{
		ChunkSize: cfg.ChunkSize,
		OnProgress: func(sent, total int64) {
			meter.Add(int(sent - lastSent))
			lastSent = sent
			line.Render(meter.Snapshot())
		},
	})
	if err := snd.SendFile(ctx, path); err != nil {
		fmt.Fprintf(termio.Stderr(), "\nsend failed: %v\n", err)
		os.Exit(1)
	}
	line.Finish(meter.Snapshot())
	fmt.Fprintf(termio.Stdout(), "sent %s (%d bytes)\n", filepath.Base(path), info.Size())
}

func openChannel(ctx context.Context, cfg config.ClientConfig, api *signaling.APIClient, code string, logger *slog.Logger) (signaling.Channel, error) {
	if cfg.SignalMode == config.SignalModePoll {
		return signaling.NewPoller(ctx, api, code, protocol.RoleSender, cfg.PeerID, cfg.PollInterval, logger)
	}
	return signaling.DialSocket(ctx, cfg.ServerURL, code, protocol.RoleSender, cfg.PeerID, logger)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func printUsage() {
	fmt.Fprintln(termio.Stderr(), "usage: wave send <path> [flags]")
	fmt.Fprintln(termio.Stderr(), "  --server-url URL      signaling server URL (default http://localhost:8080)")
	fmt.Fprintln(termio.Stderr(), "  --signal MODE         signaling mode: ws or poll (default ws)")
	fmt.Fprintln(termio.Stderr(), "  --poll-interval DUR   registry polling interval in poll mode (default 1s)")
	fmt.Fprintln(termio.Stderr(), "  --chunk-size N        chunk size in bytes (default 16384)")
	fmt.Fprintln(termio.Stderr(), "  --stun-server URLS    STUN server URLs (repeatable, comma-separated)")
	fmt.Fprintln(termio.Stderr(), "  --turn-server URLS    TURN server URLs (repeatable, comma-separated)")
	fmt.Fprintln(termio.Stderr(), "                        example: --turn-server turn:user:pass@relay.example.com:3478")
	fmt.Fprintln(termio.Stderr(), "  --log-level LEVEL     debug, info, warn or error (default info)")
}
