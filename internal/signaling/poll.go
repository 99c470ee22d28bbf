package signaling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wavesend/wavesend/pkg/protocol"
)

// DefaultPollInterval is the session poll cadence in relay-pull mode.
const DefaultPollInterval = time.Second

// Poller is the relay-pull signaling channel. Peers write their signaling
// fields into the session document through the registry HTTP surface and
// poll it on a fixed interval, diffing against the last observed values:
// the offer and answer scalars are emitted whenever their value changes
// (a retried attempt publishes a fresh description), candidate lists are
// tracked by a last-seen index so each entry is emitted exactly once, in
// list order.
type Poller struct {
	api    *APIClient
	code   string
	role   string
	peerID string
	logger *slog.Logger

	interval time.Duration
	recv     chan protocol.Signal

	closeOnce sync.Once
	closed    chan struct{}

	// Poll cursor, touched only by the poll loop goroutine.
	lastOffer    string
	lastAnswer   string
	seenPeer     bool
	candidateIdx int
}

var _ Channel = (*Poller)(nil)

// NewPoller starts a polling channel for the session. It marks this peer
// connected in the session document, then begins the poll loop.
func NewPoller(ctx context.Context, api *APIClient, code, role, peerID string, interval time.Duration, logger *slog.Logger) (*Poller, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		api:      api,
		code:     code,
		role:     role,
		peerID:   peerID,
		logger:   logger,
		interval: interval,
		recv:     make(chan protocol.Signal, 64),
		closed:   make(chan struct{}),
	}

	connected := true
	upd := protocol.UpdateSessionRequest{}
	if role == protocol.RoleSender {
		upd.SenderConnected = &connected
	} else {
		upd.ReceiverConnected = &connected
	}
	if err := api.UpdateSession(ctx, code, upd); err != nil {
		return nil, err
	}

	go p.loop()
	return p, nil
}

// Send publishes a signal by patching the corresponding session field.
func (p *Poller) Send(sig protocol.Signal) error {
	select {
	case <-p.closed:
		return ErrChannelClosed
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	upd := protocol.UpdateSessionRequest{}
	switch sig.Type {
	case protocol.TypeOffer:
		sdp := sig.SDP
		upd.SenderOffer = &sdp
	case protocol.TypeAnswer:
		sdp := sig.SDP
		upd.ReceiverAnswer = &sdp
	case protocol.TypeIceCandidate:
		cand := sig.Candidate
		if p.role == protocol.RoleSender {
			upd.SenderIceCandidate = &cand
		} else {
			upd.ReceiverIceCandidate = &cand
		}
	case protocol.TypeLeave:
		connected := false
		if p.role == protocol.RoleSender {
			upd.SenderConnected = &connected
		} else {
			upd.ReceiverConnected = &connected
		}
	default:
		return errors.New("signal type not supported in poll mode: " + sig.Type)
	}
	return p.api.UpdateSession(ctx, p.code, upd)
}

// Recv returns the inbound signal stream.
func (p *Poller) Recv() <-chan protocol.Signal {
	return p.recv
}

func (p *Poller) loop() {
	defer close(p.recv)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.interval*2)
		view, err := p.api.GetSession(ctx, p.code)
		cancel()
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
				// Session gone: the other side left or the TTL passed.
				p.emit(protocol.Signal{Type: protocol.TypePeerLeft})
				return
			}
			p.logger.Debug("session poll failed", "error", err)
			continue
		}
		p.diff(view)
	}
}

// diff compares the fetched document against the poll cursor and emits
// newly observed signals in a stable order: presence first, then the
// description, then candidates.
func (p *Poller) diff(view protocol.SessionView) {
	if p.role == protocol.RoleSender {
		if !p.seenPeer && view.ReceiverConnected {
			p.seenPeer = true
			p.emit(protocol.Signal{Type: protocol.TypePeerJoined, Role: protocol.RoleReceiver})
		}
		if view.ReceiverAnswer != "" && view.ReceiverAnswer != p.lastAnswer {
			p.lastAnswer = view.ReceiverAnswer
			p.emit(protocol.Signal{Type: protocol.TypeAnswer, SDP: view.ReceiverAnswer})
		}
		for ; p.candidateIdx < len(view.ReceiverIceCandidates); p.candidateIdx++ {
			p.emit(protocol.Signal{
				Type:      protocol.TypeIceCandidate,
				Role:      protocol.RoleReceiver,
				Candidate: view.ReceiverIceCandidates[p.candidateIdx],
			})
		}
		return
	}

	if !p.seenPeer && view.SenderConnected {
		p.seenPeer = true
		p.emit(protocol.Signal{Type: protocol.TypePeerJoined, Role: protocol.RoleSender})
	}
	if view.SenderOffer != "" && view.SenderOffer != p.lastOffer {
		p.lastOffer = view.SenderOffer
		p.emit(protocol.Signal{Type: protocol.TypeOffer, SDP: view.SenderOffer})
	}
	for ; p.candidateIdx < len(view.SenderIceCandidates); p.candidateIdx++ {
		p.emit(protocol.Signal{
			Type:      protocol.TypeIceCandidate,
			Role:      protocol.RoleSender,
			Candidate: view.SenderIceCandidates[p.candidateIdx],
		})
	}
}

func (p *Poller) emit(sig protocol.Signal) {
	select {
	case p.recv <- sig:
	case <-p.closed:
	}
}

// Close stops the poll loop and marks this peer disconnected.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		connected := false
		upd := protocol.UpdateSessionRequest{}
		if p.role == protocol.RoleSender {
			upd.SenderConnected = &connected
		} else {
			upd.ReceiverConnected = &connected
		}
		_ = p.api.UpdateSession(ctx, p.code, upd)
	})
	return nil
}
