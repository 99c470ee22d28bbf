// Package receiver implements the `wave receive` command: look up a session
// by code, join its room, connect to the sender and write the incoming file.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/wavesend/wavesend/internal/config"
	"github.com/wavesend/wavesend/internal/logging"
	"github.com/wavesend/wavesend/internal/progress"
	"github.com/wavesend/wavesend/internal/rtc"
	"github.com/wavesend/wavesend/internal/signaling"
	"github.com/wavesend/wavesend/internal/termio"
	"github.com/wavesend/wavesend/internal/transfer"
	"github.com/wavesend/wavesend/pkg/protocol"
)

// Run executes `wave receive <code>`.
func Run(args []string) {
	if hasHelpFlag(args) {
		printUsage()
		return
	}
	cfg, rest := config.ParseClientConfig(args)
	code := cfg.Code
	if len(rest) == 1 {
		code = rest[0]
	}
	if code == "" || len(rest) > 1 {
		printUsage()
		os.Exit(2)
	}

	logger := logging.New("wave-receive", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api := signaling.NewAPIClient(cfg.ServerURL)
	view, err := api.GetSession(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, signaling.ErrSessionNotFound):
			fmt.Fprintf(termio.Stderr(), "no session with code %s; check the code with the sender\n", code)
		case errors.Is(err, signaling.ErrSessionExpired):
			fmt.Fprintf(termio.Stderr(), "session %s has expired; ask the sender to start again\n", code)
		default:
			fmt.Fprintf(termio.Stderr(), "look up session: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Fprintf(termio.Stdout(), "receiving %s (%d bytes) into %s\n", view.FileName, view.FileSize, cfg.OutDir)

	ch, err := openChannel(ctx, cfg, api, code, logger)
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "join signaling: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	stunServers := cfg.StunServers
	if len(stunServers) == 0 {
		stunServers = config.DefaultStunServers
	}
	factory, err := rtc.NewPionFactory(rtc.ICEConfig{
		StunServers: stunServers,
		TurnServers: cfg.TurnServers,
	}, logger)
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "invalid ICE configuration: %v\n", err)
		os.Exit(1)
	}
	conn := rtc.NewConnector(ch, factory, rtc.Config{Logger: logger})

	fmt.Fprintln(termio.Stdout(), "connecting to sender...")
	tr, err := conn.Connect(ctx, protocol.RoleReceiver)
	if err != nil {
		if errors.Is(err, rtc.ErrNoRouteFound) {
			fmt.Fprintln(termio.Stderr(), "no network route to the sender was found; add a --turn-server relay and try again")
		} else {
			fmt.Fprintf(termio.Stderr(), "connect: %v\n", err)
		}
		os.Exit(1)
	}
	defer tr.Close()

	meter := progress.NewMeter()
	meter.Start(view.FileSize)
	line := progress.NewLine(termio.Stdout(), "receiving")
	var lastReceived int64

	recv := transfer.NewReceiver(tr, cfg.OutDir, transfer.RecvOptions{
		OnProgress: func(received, total int64) {
			meter.Add(int(received - lastReceived))
			lastReceived = received
			line.Render(meter.Snapshot())
		},
	})
	path, err := recv.Wait(ctx)
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "\nreceive failed: %v\n", err)
		os.Exit(1)
	}
	line.Finish(meter.Snapshot())
	fmt.Fprintf(termio.Stdout(), "saved %s\n", path)
}

func openChannel(ctx context.Context, cfg config.ClientConfig, api *signaling.APIClient, code string, logger *slog.Logger) (signaling.Channel, error) {
	if cfg.SignalMode == config.SignalModePoll {
		return signaling.NewPoller(ctx, api, code, protocol.RoleReceiver, cfg.PeerID, cfg.PollInterval, logger)
	}
	return signaling.DialSocket(ctx, cfg.ServerURL, code, protocol.RoleReceiver, cfg.PeerID, logger)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Fprintln(termio.Stderr(), "usage: wave receive <code> [flags]")
	fmt.Fprintln(termio.Stderr(), "  --server-url URL      signaling server URL (default http://localhost:8080)")
	fmt.Fprintln(termio.Stderr(), "  --out-dir DIR         directory to save the received file (default .)")
	fmt.Fprintln(termio.Stderr(), "  --signal MODE         signaling mode: ws or poll (default ws)")
	fmt.Fprintln(termio.Stderr(), "  --poll-interval DUR   registry polling interval in poll mode (default 1s)")
	fmt.Fprintln(termio.Stderr(), "  --stun-server URLS    STUN server URLs (repeatable, comma-separated)")
	fmt.Fprintln(termio.Stderr(), "  --turn-server URLS    TURN server URLs (repeatable, comma-separated)")
	fmt.Fprintln(termio.Stderr(), "  --log-level LEVEL     debug, info, warn or error (default info)")
}
