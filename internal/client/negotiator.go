package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/domain"
)

var ErrNegotiationTimeout = errors.New("negotiation timed out")

// State is the client connection state machine. One state, one timer.
type State int

const (
	StateIdle State = iota
	StateWaitingForMatch
	StateNegotiating
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForMatch:
		return "waiting-for-match"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// SendFunc forwards a handshake message to the partner through the server.
type SendFunc func(kind app.SignalKind, payload json.RawMessage) error

// StateFunc observes transitions; err is non-nil only for StateFailed.
type StateFunc func(s State, err error)

const (
	defaultNegotiationTimeout = 30 * time.Second
	defaultMaxAttempts        = 3
)

// Negotiator drives one offer/answer/ICE exchange for a matched room.
//
// Both sides learn about the match at the same time, so the offerer is picked
// deterministically: the lexicographically lower user id offers, the other
// answers. That removes the glare race by construction; the sentOffer /
// remote-description guards below still drop a stray simultaneous offer or a
// duplicate, since the relay promises nothing about duplication or ordering
// beyond the transport's.
type Negotiator struct {
	mu sync.Mutex

	local  domain.UserID
	remote domain.UserID
	room   domain.RoomID

	newPeer PeerFactory
	peer    MediaPeer
	send    SendFunc
	onState StateFunc

	state     State
	sentOffer bool
	gotOffer  bool
	pending   []webrtc.ICECandidateInit

	timer       *time.Timer
	timeout     time.Duration
	attempts    int
	maxAttempts int
}

type NegotiatorOption func(*Negotiator)

func WithTimeout(d time.Duration) NegotiatorOption {
	return func(n *Negotiator) { n.timeout = d }
}

func WithMaxAttempts(k int) NegotiatorOption {
	return func(n *Negotiator) { n.maxAttempts = k }
}

func NewNegotiator(
	local, remote domain.UserID,
	room domain.RoomID,
	newPeer PeerFactory,
	send SendFunc,
	onState StateFunc,
	opts ...NegotiatorOption,
) *Negotiator {
	n := &Negotiator{
		local:       local,
		remote:      remote,
		room:        room,
		newPeer:     newPeer,
		send:        send,
		onState:     onState,
		state:       StateIdle,
		timeout:     defaultNegotiationTimeout,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Offerer reports whether this side initiates the offer.
func (n *Negotiator) Offerer() bool {
	return n.local < n.remote
}

func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Start creates the peer and, on the offerer side, sends the offer. The
// answerer side just waits for the remote offer.
func (n *Negotiator) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.startAttemptLocked()
}

func (n *Negotiator) startAttemptLocked() error {
	peer, err := n.newPeer(PeerHooks{
		OnCandidate: n.sendCandidate,
		OnUp:        n.handleUp,
		OnDown:      n.handleDown,
	})
	if err != nil {
		n.transitionLocked(StateFailed, err)
		return err
	}
	n.peer = peer
	n.sentOffer = false
	n.gotOffer = false
	n.pending = nil
	n.transitionLocked(StateNegotiating, nil)
	n.armTimerLocked()

	if n.Offerer() {
		if err := n.sendOfferLocked(); err != nil {
			n.transitionLocked(StateFailed, err)
			return err
		}
	}
	return nil
}

func (n *Negotiator) sendOfferLocked() error {
	offer, err := n.peer.CreateOffer()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	n.sentOffer = true
	log.Info().Str("module", "client.negotiator").Str("room", string(n.room)).Msg("sending offer")
	return n.send(app.SignalOffer, payload)
}

// HandleSignal feeds a relayed message into the state machine. Unknown rooms,
// duplicate offers and early candidates are all absorbed here.
func (n *Negotiator) HandleSignal(kind app.SignalKind, payload json.RawMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.peer == nil || n.state == StateFailed {
		return
	}

	switch kind {
	case app.SignalOffer:
		n.handleOfferLocked(payload)
	case app.SignalAnswer:
		n.handleAnswerLocked(payload)
	case app.SignalCandidate:
		n.handleCandidateLocked(payload)
	}
}

func (n *Negotiator) handleOfferLocked(payload json.RawMessage) {
	if n.sentOffer {
		// Glare: our own offer is in flight and wins the deterministic
		// tie-break, the incoming one is dropped.
		log.Warn().Str("module", "client.negotiator").Str("room", string(n.room)).Msg("glare, ignoring remote offer")
		return
	}
	if n.gotOffer || n.peer.RemoteDescriptionSet() {
		log.Warn().Str("module", "client.negotiator").Str("room", string(n.room)).Msg("duplicate offer ignored")
		return
	}
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("bad offer payload")
		return
	}
	n.gotOffer = true
	answer, err := n.peer.CreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("create answer")
		return
	}
	n.flushCandidatesLocked()
	b, err := json.Marshal(answer)
	if err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("marshal answer")
		return
	}
	if err := n.send(app.SignalAnswer, b); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("send answer")
	}
}

func (n *Negotiator) handleAnswerLocked(payload json.RawMessage) {
	if !n.sentOffer {
		log.Warn().Str("module", "client.negotiator").Str("room", string(n.room)).Msg("answer without offer, ignored")
		return
	}
	if n.peer.RemoteDescriptionSet() {
		log.Warn().Str("module", "client.negotiator").Str("room", string(n.room)).Msg("duplicate answer ignored")
		return
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("bad answer payload")
		return
	}
	if err := n.peer.AcceptAnswer(answer); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("accept answer")
		return
	}
	n.flushCandidatesLocked()
}

func (n *Negotiator) handleCandidateLocked(payload json.RawMessage) {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &ci); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("bad candidate payload")
		return
	}
	// Candidates can outrun the offer/answer they belong to; hold them until
	// the remote description lands.
	if !n.peer.RemoteDescriptionSet() {
		n.pending = append(n.pending, ci)
		return
	}
	if err := n.peer.AddICECandidate(ci); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("add candidate")
	}
}

func (n *Negotiator) flushCandidatesLocked() {
	for _, ci := range n.pending {
		if err := n.peer.AddICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "client.negotiator").Msg("flush candidate")
		}
	}
	n.pending = nil
}

func (n *Negotiator) sendCandidate(ci webrtc.ICECandidateInit) {
	b, err := json.Marshal(ci)
	if err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("marshal candidate")
		return
	}
	if err := n.send(app.SignalCandidate, b); err != nil {
		log.Error().Err(err).Str("module", "client.negotiator").Msg("send candidate")
	}
}

// handleUp latches success: whichever of the three signals (peer state, ICE
// state, remote track) fires first wins, the rest are no-ops.
func (n *Negotiator) handleUp() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateNegotiating {
		return
	}
	n.stopTimerLocked()
	n.attempts = 0
	n.transitionLocked(StateConnected, nil)
}

func (n *Negotiator) handleDown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	// Down during negotiation is handled by the attempt timer; after a
	// successful connect it means the media path died.
	if n.state != StateConnected {
		return
	}
	n.transitionLocked(StateFailed, errors.New("media connection lost"))
}

func (n *Negotiator) armTimerLocked() {
	n.stopTimerLocked()
	n.timer = time.AfterFunc(n.timeout, n.onTimeout)
}

func (n *Negotiator) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Negotiator) onTimeout() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateNegotiating {
		return
	}
	n.attempts++
	log.Warn().Str("module", "client.negotiator").Str("room", string(n.room)).Int("attempt", n.attempts).Msg("negotiation timeout")
	if n.attempts >= n.maxAttempts {
		n.closePeerLocked()
		n.transitionLocked(StateFailed, ErrNegotiationTimeout)
		return
	}
	n.retryLocked()
}

// Retry restarts the offer cycle with a fresh peer. Used by the UI after a
// surfaced timeout.
func (n *Negotiator) Retry() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts = 0
	return n.retryLocked()
}

func (n *Negotiator) retryLocked() error {
	n.closePeerLocked()
	return n.startAttemptLocked()
}

// Close tears the negotiation down without reporting failure.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopTimerLocked()
	n.closePeerLocked()
	n.state = StateIdle
}

func (n *Negotiator) closePeerLocked() {
	if n.peer != nil {
		n.peer.Close()
		n.peer = nil
	}
}

func (n *Negotiator) transitionLocked(s State, err error) {
	if n.state == s {
		return
	}
	n.state = s
	log.Info().Str("module", "client.negotiator").Str("room", string(n.room)).Str("state", s.String()).Msg("state transition")
	if n.onState != nil {
		// Callback runs outside the lock to let it call back in.
		go n.onState(s, err)
	}
}
