package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/domain"
)

// Handlers receive session events. All are optional.
type Handlers struct {
	OnMatched     func(ev app.MatchedEvent)
	OnPartnerLeft func(room domain.RoomID, reason app.LeaveReason)
	OnChat        func(ev app.ChatEvent)
	OnState       func(s State, err error)
	OnServerError func(code string)
}

// Session is the Go client for the Random Connect websocket. It manages the
// transport, the queue requests, and one Negotiator per matched room.
type Session struct {
	userID   domain.UserID
	url      string
	newPeer  PeerFactory
	handlers Handlers
	negOpts  []NegotiatorOption

	conn      *websocket.Conn
	outgoing  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	state State
	neg   *Negotiator
	room  domain.RoomID
	game  domain.GameID
	video bool
}

func NewSession(serverURL string, userID domain.UserID, newPeer PeerFactory, handlers Handlers, negOpts ...NegotiatorOption) *Session {
	return &Session{
		userID:   userID,
		url:      serverURL,
		newPeer:  newPeer,
		handlers: handlers,
		negOpts:  negOpts,
		outgoing: make(chan []byte, 32),
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

// Connect dials the signaling endpoint and starts the IO loops.
func (s *Session) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial signaling server: %w", err)
	}
	s.conn = conn
	go s.writeLoop()
	go s.readLoop()
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	if s.neg != nil {
		s.neg.Close()
		s.neg = nil
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.neg != nil {
		return s.neg.State()
	}
	return s.state
}

// JoinQueue asks to be paired for game.
func (s *Session) JoinQueue(game domain.GameID, video bool) error {
	s.mu.Lock()
	s.state = StateWaitingForMatch
	s.game = game
	s.video = video
	s.mu.Unlock()
	return s.send(map[string]any{"type": "join-queue", "game": string(game), "video": video})
}

func (s *Session) LeaveQueue() error {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	return s.send(map[string]any{"type": "leave-queue"})
}

// Disconnect ends the current room session.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	room := s.room
	if s.neg != nil {
		s.neg.Close()
		s.neg = nil
	}
	s.room = ""
	s.state = StateIdle
	s.mu.Unlock()
	if room == "" {
		return nil
	}
	return s.send(map[string]any{"type": "disconnect", "room": string(room)})
}

// NextMatch is the compound skip: end the current room, rejoin the queue for
// the same game and video preference.
func (s *Session) NextMatch() error {
	s.mu.Lock()
	game, video := s.game, s.video
	s.mu.Unlock()
	if err := s.Disconnect(); err != nil {
		return err
	}
	return s.JoinQueue(game, video)
}

func (s *Session) SendChat(text string) error {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	if room == "" {
		return errors.New("no active room")
	}
	return s.send(map[string]any{"type": "chat", "room": string(room), "text": text})
}

// Retry restarts a failed negotiation.
func (s *Session) Retry() error {
	s.mu.Lock()
	neg := s.neg
	s.mu.Unlock()
	if neg == nil {
		return errors.New("nothing to retry")
	}
	return neg.Retry()
}

func (s *Session) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outgoing <- b:
		return nil
	case <-s.done:
		return errors.New("session closed")
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case b := <-s.outgoing:
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Error().Err(err).Str("module", "client.session").Msg("write error")
				return
			}
		}
	}
}

func (s *Session) readLoop() {
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "client.session").Msg("read loop closing")
			return
		}
		s.dispatch(data)
	}
}

func (s *Session) dispatch(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client.session").Msg("bad json from server")
		return
	}

	switch env.Type {
	case app.EventMatched:
		s.handleMatched(data)
	case app.EventSignal:
		s.handleSignal(data)
	case app.EventPartnerLeft:
		s.handlePartnerLeft(data)
	case app.EventChat:
		s.handleChat(data)
	case "error":
		s.handleServerError(data)
	case "queued", "left-queue", "disconnected", "pong":
		// acks, nothing to drive
	default:
		log.Warn().Str("module", "client.session").Str("type", env.Type).Msg("unknown event")
	}
}

func (s *Session) handleMatched(data []byte) {
	var ev app.MatchedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "client.session").Msg("bad matched event")
		return
	}
	log.Info().Str("module", "client.session").Str("room", string(ev.Room)).Str("partner", string(ev.Partner.ID)).Msg("matched")

	s.mu.Lock()
	if s.neg != nil {
		s.neg.Close()
	}
	s.room = ev.Room
	neg := NewNegotiator(
		s.userID,
		ev.Partner.ID,
		ev.Room,
		s.newPeer,
		s.signalSender(ev.Room, ev.Partner.ID),
		s.handlers.OnState,
		s.negOpts...,
	)
	s.neg = neg
	s.mu.Unlock()

	if s.handlers.OnMatched != nil {
		s.handlers.OnMatched(ev)
	}
	if err := neg.Start(); err != nil {
		log.Error().Err(err).Str("module", "client.session").Msg("negotiator start")
	}
}

func (s *Session) signalSender(room domain.RoomID, to domain.UserID) SendFunc {
	return func(kind app.SignalKind, payload json.RawMessage) error {
		return s.send(map[string]any{
			"type":    "signal",
			"room":    string(room),
			"to":      string(to),
			"kind":    string(kind),
			"payload": payload,
		})
	}
}

func (s *Session) handleSignal(data []byte) {
	var ev app.SignalEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "client.session").Msg("bad signal event")
		return
	}
	s.mu.Lock()
	neg := s.neg
	room := s.room
	s.mu.Unlock()
	if neg == nil || ev.Room != room {
		log.Warn().Str("module", "client.session").Str("room", string(ev.Room)).Msg("signal for unknown room")
		return
	}
	neg.HandleSignal(ev.Kind, ev.Payload)
}

func (s *Session) handlePartnerLeft(data []byte) {
	var ev app.PartnerLeftEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "client.session").Msg("bad partner-left event")
		return
	}
	log.Info().Str("module", "client.session").Str("room", string(ev.Room)).Str("reason", string(ev.Reason)).Msg("partner left")

	s.mu.Lock()
	if s.room == ev.Room {
		if s.neg != nil {
			s.neg.Close()
			s.neg = nil
		}
		s.room = ""
		s.state = StateIdle
	}
	s.mu.Unlock()

	if s.handlers.OnPartnerLeft != nil {
		s.handlers.OnPartnerLeft(ev.Room, ev.Reason)
	}
}

func (s *Session) handleChat(data []byte) {
	var ev app.ChatEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "client.session").Msg("bad chat event")
		return
	}
	if s.handlers.OnChat != nil {
		s.handlers.OnChat(ev)
	}
}

func (s *Session) handleServerError(data []byte) {
	var ev struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	log.Warn().Str("module", "client.session").Str("code", ev.Error).Msg("server rejected request")
	if s.handlers.OnServerError != nil {
		s.handlers.OnServerError(ev.Error)
	}
}
