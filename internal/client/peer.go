package client

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PeerHooks carries the callbacks a negotiator registers on its peer.
// OnUp may fire several times (peer state, ICE state, first remote track are
// independent success signals); the negotiator latches the first one.
type PeerHooks struct {
	OnCandidate func(webrtc.ICECandidateInit)
	OnUp        func()
	OnDown      func()
}

// MediaPeer is the slice of a WebRTC peer connection the negotiator drives.
type MediaPeer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	AcceptAnswer(answer webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	RemoteDescriptionSet() bool
	Close()
}

// PeerFactory builds a fresh peer for each negotiation attempt.
type PeerFactory func(hooks PeerHooks) (MediaPeer, error)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewPionPeer returns a PeerFactory backed by pion/webrtc.
func NewPionPeer(cfg webrtc.Configuration) PeerFactory {
	return func(hooks PeerHooks) (MediaPeer, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		p := &pionPeer{pc: pc}

		pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
			if cand != nil && hooks.OnCandidate != nil {
				hooks.OnCandidate(cand.ToJSON())
			}
		})
		pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
			log.Info().Str("module", "client.peer").Str("peer_connection_state", s.String()).Msg("Peer state")
			switch s {
			case webrtc.PeerConnectionStateConnected:
				if hooks.OnUp != nil {
					hooks.OnUp()
				}
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				if hooks.OnDown != nil {
					hooks.OnDown()
				}
			}
		})
		pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
			log.Info().Str("module", "client.peer").Str("ice_state", s.String()).Msg("ICE state")
			if s == webrtc.ICEConnectionStateConnected && hooks.OnUp != nil {
				hooks.OnUp()
			}
		})
		pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			log.Info().
				Str("module", "client.peer").
				Str("kind", track.Kind().String()).
				Str("track_id", track.ID()).
				Str("stream_id", track.StreamID()).
				Msg("remote track")
			if hooks.OnUp != nil {
				hooks.OnUp()
			}
		})
		return p, nil
	}
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (p *pionPeer) CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (p *pionPeer) AcceptAnswer(answer webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(answer)
}

func (p *pionPeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *pionPeer) RemoteDescriptionSet() bool {
	return p.pc.RemoteDescription() != nil
}

func (p *pionPeer) Close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "client.peer").Msg("close error")
	}
}
