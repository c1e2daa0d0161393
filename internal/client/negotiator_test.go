package client_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/client"
)

// fakePeer stands in for a pion peer connection; the test drives the hooks.
type fakePeer struct {
	mu            sync.Mutex
	hooks         client.PeerHooks
	offersCreated int
	answers       int
	remoteSet     bool
	candidates    []webrtc.ICECandidateInit
	closed        bool
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offersCreated++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (p *fakePeer) CreateAnswer(webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteSet = true
	p.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (p *fakePeer) AcceptAnswer(webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteSet = true
	return nil
}

func (p *fakePeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, ci)
	return nil
}

func (p *fakePeer) RemoteDescriptionSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteSet
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// peerLog hands out fake peers and remembers every one created, so retry
// behavior is observable.
type peerLog struct {
	mu    sync.Mutex
	peers []*fakePeer
}

func (l *peerLog) factory() client.PeerFactory {
	return func(hooks client.PeerHooks) (client.MediaPeer, error) {
		p := &fakePeer{hooks: hooks}
		l.mu.Lock()
		l.peers = append(l.peers, p)
		l.mu.Unlock()
		return p, nil
	}
}

func (l *peerLog) last() *fakePeer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peers[len(l.peers)-1]
}

func (l *peerLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.peers)
}

type sentMsg struct {
	kind    app.SignalKind
	payload json.RawMessage
}

type outbox struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (o *outbox) send(kind app.SignalKind, payload json.RawMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, sentMsg{kind: kind, payload: payload})
	return nil
}

func (o *outbox) ofKind(kind app.SignalKind) []sentMsg {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []sentMsg
	for _, m := range o.msgs {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// stateLog records transitions; waitFor blocks until a state shows up.
type stateLog struct {
	mu     sync.Mutex
	states []client.State
	errs   []error
	ch     chan client.State
}

func newStateLog() *stateLog {
	return &stateLog{ch: make(chan client.State, 16)}
}

func (l *stateLog) record(s client.State, err error) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.errs = append(l.errs, err)
	l.mu.Unlock()
	l.ch <- s
}

func (l *stateLog) waitFor(t *testing.T, want client.State) error {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-l.ch:
			if s == want {
				l.mu.Lock()
				defer l.mu.Unlock()
				return l.errs[len(l.errs)-1]
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func TestLowerUserIDIsOfferer(t *testing.T) {
	peers := &peerLog{}
	ob := &outbox{}

	offerer := client.NewNegotiator("alice", "bob", "r1", peers.factory(), ob.send, nil)
	assert.True(t, offerer.Offerer())
	require.NoError(t, offerer.Start())
	assert.Len(t, ob.ofKind(app.SignalOffer), 1)

	ob2 := &outbox{}
	answerer := client.NewNegotiator("bob", "alice", "r1", peers.factory(), ob2.send, nil)
	assert.False(t, answerer.Offerer())
	require.NoError(t, answerer.Start())
	assert.Empty(t, ob2.ofKind(app.SignalOffer), "higher id waits for the remote offer")
}

func TestAnswererRespondsToOffer(t *testing.T) {
	peers := &peerLog{}
	ob := &outbox{}
	n := client.NewNegotiator("bob", "alice", "r1", peers.factory(), ob.send, nil)
	require.NoError(t, n.Start())

	offer, _ := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	n.HandleSignal(app.SignalOffer, offer)

	assert.Len(t, ob.ofKind(app.SignalAnswer), 1)
	assert.Equal(t, 1, peers.last().answers)

	// Duplicate offer is suppressed.
	n.HandleSignal(app.SignalOffer, offer)
	assert.Len(t, ob.ofKind(app.SignalAnswer), 1)
	assert.Equal(t, 1, peers.last().answers)
}

func TestGlareOffererIgnoresRemoteOffer(t *testing.T) {
	peers := &peerLog{}
	ob := &outbox{}
	n := client.NewNegotiator("alice", "bob", "r1", peers.factory(), ob.send, nil)
	require.NoError(t, n.Start())
	require.Len(t, ob.ofKind(app.SignalOffer), 1)

	offer, _ := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	n.HandleSignal(app.SignalOffer, offer)

	assert.Empty(t, ob.ofKind(app.SignalAnswer), "own offer is in flight, remote offer dropped")
	assert.Equal(t, 0, peers.last().answers)
	assert.False(t, peers.last().RemoteDescriptionSet())
}

func TestAnswerWithoutOfferIgnored(t *testing.T) {
	peers := &peerLog{}
	n := client.NewNegotiator("bob", "alice", "r1", peers.factory(), (&outbox{}).send, nil)
	require.NoError(t, n.Start())

	answer, _ := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	n.HandleSignal(app.SignalAnswer, answer)
	assert.False(t, peers.last().RemoteDescriptionSet())
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	peers := &peerLog{}
	n := client.NewNegotiator("bob", "alice", "r1", peers.factory(), (&outbox{}).send, nil)
	require.NoError(t, n.Start())

	ci, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:1"})
	n.HandleSignal(app.SignalCandidate, ci)
	assert.Empty(t, peers.last().candidates, "candidate ahead of the offer is held back")

	offer, _ := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	n.HandleSignal(app.SignalOffer, offer)
	require.Len(t, peers.last().candidates, 1)
	assert.Equal(t, "candidate:1", peers.last().candidates[0].Candidate)

	// Late candidates now go straight through.
	ci2, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:2"})
	n.HandleSignal(app.SignalCandidate, ci2)
	assert.Len(t, peers.last().candidates, 2)
}

func TestGlareConvergesToSingleConnection(t *testing.T) {
	peersA := &peerLog{}
	peersB := &peerLog{}
	statesA := newStateLog()
	statesB := newStateLog()

	// Queued in-memory relay: deliveries happen after the sender returns,
	// like a real transport.
	var pump struct {
		mu    sync.Mutex
		queue []func()
	}
	var negA, negB *client.Negotiator
	deliverTo := func(n **client.Negotiator) client.SendFunc {
		return func(kind app.SignalKind, payload json.RawMessage) error {
			pump.mu.Lock()
			pump.queue = append(pump.queue, func() { (*n).HandleSignal(kind, payload) })
			pump.mu.Unlock()
			return nil
		}
	}
	drain := func() {
		for {
			pump.mu.Lock()
			if len(pump.queue) == 0 {
				pump.mu.Unlock()
				return
			}
			next := pump.queue[0]
			pump.queue = pump.queue[1:]
			pump.mu.Unlock()
			next()
		}
	}

	negA = client.NewNegotiator("alice", "bob", "r1", peersA.factory(), deliverTo(&negB), statesA.record)
	negB = client.NewNegotiator("bob", "alice", "r1", peersB.factory(), deliverTo(&negA), statesB.record)

	// Both sides learn about the match at the same time.
	require.NoError(t, negA.Start())
	require.NoError(t, negB.Start())
	drain()

	assert.True(t, peersA.last().RemoteDescriptionSet(), "offerer accepted the answer")
	assert.True(t, peersB.last().RemoteDescriptionSet(), "answerer accepted the offer")
	assert.Equal(t, 1, peersA.count(), "no second connection attempt")
	assert.Equal(t, 1, peersB.count())

	peersA.last().hooks.OnUp()
	peersB.last().hooks.OnUp()
	require.NoError(t, statesA.waitFor(t, client.StateConnected))
	require.NoError(t, statesB.waitFor(t, client.StateConnected))
}

func TestNegotiationTimeoutRetriesThenFails(t *testing.T) {
	peers := &peerLog{}
	states := newStateLog()
	n := client.NewNegotiator("alice", "bob", "r1", peers.factory(), (&outbox{}).send, states.record,
		client.WithTimeout(20*time.Millisecond), client.WithMaxAttempts(2))
	require.NoError(t, n.Start())

	err := states.waitFor(t, client.StateFailed)
	assert.ErrorIs(t, err, client.ErrNegotiationTimeout)
	assert.Equal(t, 2, peers.count(), "one retry with a fresh peer before giving up")
	assert.Equal(t, client.StateFailed, n.State())
}

func TestManualRetryAfterFailure(t *testing.T) {
	peers := &peerLog{}
	states := newStateLog()
	ob := &outbox{}
	n := client.NewNegotiator("alice", "bob", "r1", peers.factory(), ob.send, states.record,
		client.WithTimeout(10*time.Millisecond), client.WithMaxAttempts(1))
	require.NoError(t, n.Start())
	require.Error(t, states.waitFor(t, client.StateFailed))

	require.NoError(t, n.Retry())
	assert.Equal(t, client.StateNegotiating, n.State())
	assert.GreaterOrEqual(t, len(ob.ofKind(app.SignalOffer)), 2, "retry restarts the offer cycle")

	peers.last().hooks.OnUp()
	require.NoError(t, states.waitFor(t, client.StateConnected))
}

func TestFirstSuccessSignalWins(t *testing.T) {
	peers := &peerLog{}
	states := newStateLog()
	n := client.NewNegotiator("alice", "bob", "r1", peers.factory(), (&outbox{}).send, states.record)
	require.NoError(t, n.Start())

	// Peer state, ICE state and remote track each report success; only the
	// first one transitions.
	peers.last().hooks.OnUp()
	peers.last().hooks.OnUp()
	peers.last().hooks.OnUp()
	require.NoError(t, states.waitFor(t, client.StateConnected))

	states.mu.Lock()
	connected := 0
	for _, s := range states.states {
		if s == client.StateConnected {
			connected++
		}
	}
	states.mu.Unlock()
	assert.Equal(t, 1, connected)
	assert.Equal(t, client.StateConnected, n.State())
}

func TestMediaLossAfterConnect(t *testing.T) {
	peers := &peerLog{}
	states := newStateLog()
	n := client.NewNegotiator("alice", "bob", "r1", peers.factory(), (&outbox{}).send, states.record)
	require.NoError(t, n.Start())

	// Down during negotiation is the timer's problem, not a failure yet.
	peers.last().hooks.OnDown()
	assert.Equal(t, client.StateNegotiating, n.State())

	peers.last().hooks.OnUp()
	require.NoError(t, states.waitFor(t, client.StateConnected))

	peers.last().hooks.OnDown()
	err := states.waitFor(t, client.StateFailed)
	assert.Error(t, err)
}

func TestCloseStopsNegotiation(t *testing.T) {
	peers := &peerLog{}
	n := client.NewNegotiator("alice", "bob", "r1", peers.factory(), (&outbox{}).send, nil,
		client.WithTimeout(10*time.Millisecond))
	require.NoError(t, n.Start())
	n.Close()

	assert.True(t, peers.last().closed)
	assert.Equal(t, client.StateIdle, n.State())

	// The canceled timer must not fire a retry.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, peers.count())
}
