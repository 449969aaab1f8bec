package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"campus_chat_service/pkg/wire"
)

// MessageHandler receives fanned-out room messages, once per message id.
type MessageHandler func(msg wire.Message)

// TypingHandler receives typing signals from other users in a room.
type TypingHandler func(t wire.Typing)

// Session one authenticated websocket connection with automatic
// reconnection. All handler callbacks run on the session's read
// goroutine, so deliveries within a session never race each other.
type Session struct {
	opts  Options
	token string
	log   *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	joined  map[string]bool
	msgSubs map[string]map[int]MessageHandler
	typSubs map[string]map[int]TypingHandler
	seen    map[string]map[string]struct{}
	acks    map[string]chan wire.Envelope
	nextSub int

	writeMu sync.Mutex

	// lifeCtx bounds every dial; Disconnect cancels it so an in-flight
	// reconnect handshake cannot outlive the session.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(opts Options, token string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		opts:       opts,
		token:      token,
		log:        opts.Logger,
		joined:     make(map[string]bool),
		msgSubs:    make(map[string]map[int]MessageHandler),
		typSubs:    make(map[string]map[int]TypingHandler),
		seen:       make(map[string]map[string]struct{}),
		acks:       make(map[string]chan wire.Envelope),
		lifeCtx:    ctx,
		lifeCancel: cancel,
		closed:     make(chan struct{}),
	}
}

func dial(ctx context.Context, rawURL, token string) (*websocket.Conn, error) {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("chatclient: bad url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("auth", token)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrAuthRejected
		}
		return nil, err
	}
	return conn, nil
}

// connect performs the first dial. Later reconnects never go through here.
func (s *Session) connect(ctx context.Context) error {
	s.setState(StateConnecting, nil)
	conn, err := dial(ctx, s.opts.URL, s.token)
	if err != nil {
		s.setState(StateDisconnected, err)
		return err
	}
	if !s.install(conn) {
		s.setState(StateDisconnected, nil)
		return ErrNotConnected
	}
	s.setState(StateConnected, nil)
	go s.run(conn)
	return nil
}

// install adopts a freshly dialed connection, unless the session was
// closed while the handshake was in flight.
func (s *Session) install(conn *websocket.Conn) bool {
	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		conn.Close()
		return false
	}
	s.conn = conn
	s.mu.Unlock()
	return true
}

func (s *Session) run(conn *websocket.Conn) {
	for {
		s.readLoop(conn)
		if s.isClosed() {
			s.setState(StateDisconnected, nil)
			return
		}
		s.setState(StateReconnecting, ErrTransportLost)
		next, ok := s.reconnect()
		if !ok {
			return
		}
		conn = next
	}
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.failPendingAcks()
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			s.log.Warn("chatclient: dropping malformed frame", zap.Error(err))
			continue
		}
		s.dispatch(env)
	}
}

// reconnect retries with doubling delays until it lands a connection,
// the session is closed, the attempt budget runs out, or the server
// rejects the token.
func (s *Session) reconnect() (*websocket.Conn, bool) {
	delay := s.opts.BackoffBase
	for attempt := 1; ; attempt++ {
		select {
		case <-s.closed:
			s.setState(StateDisconnected, nil)
			return nil, false
		case <-time.After(delay):
		}

		conn, err := dial(s.lifeCtx, s.opts.URL, s.token)
		if err == nil {
			if !s.install(conn) {
				s.setState(StateDisconnected, nil)
				return nil, false
			}
			s.setState(StateConnected, nil)
			s.replayJoins()
			return conn, true
		}
		if s.isClosed() {
			s.setState(StateDisconnected, nil)
			return nil, false
		}
		if errors.Is(err, ErrAuthRejected) {
			s.setState(StateDisconnected, ErrAuthRejected)
			return nil, false
		}
		s.log.Warn("chatclient: reconnect failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if s.opts.MaxAttempts > 0 && attempt >= s.opts.MaxAttempts {
			s.setState(StateDisconnected, ErrTransportLost)
			return nil, false
		}
		delay *= 2
		if delay > s.opts.BackoffCeiling {
			delay = s.opts.BackoffCeiling
		}
	}
}

// replayJoins re-asserts room membership after a reconnect; the server
// keeps no memory of the old connection.
func (s *Session) replayJoins() {
	s.mu.Lock()
	rooms := make([]string, 0, len(s.joined))
	for room := range s.joined {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()
	for _, room := range rooms {
		if err := s.writeEnvelope(wire.Envelope{Event: wire.EventJoin, Room: room}); err != nil {
			return
		}
	}
}

func (s *Session) dispatch(env wire.Envelope) {
	switch env.Event {
	case wire.EventMessage:
		if env.Message != nil {
			s.deliverMessage(*env.Message)
		}
	case wire.EventTyping:
		if env.Typing != nil {
			s.deliverTyping(*env.Typing)
		}
	case wire.EventAck:
		s.mu.Lock()
		ch := s.acks[env.Seq]
		delete(s.acks, env.Seq)
		s.mu.Unlock()
		if ch != nil {
			ch <- env
		}
	case wire.EventJoin:
		if env.Code != "" && s.opts.OnRoomRejected != nil {
			s.opts.OnRoomRejected(env.Room, env.Error)
		}
	case wire.EventPresence:
		if env.Presence != nil && s.opts.OnPresence != nil {
			s.opts.OnPresence(*env.Presence)
		}
	}
}

// deliverMessage fans a message out to the room's handlers exactly once
// per message id, so a rejoin replay or duplicated broadcast cannot make
// a handler fire twice.
func (s *Session) deliverMessage(msg wire.Message) {
	s.mu.Lock()
	ids := s.seen[msg.Room]
	if ids == nil {
		ids = make(map[string]struct{})
		s.seen[msg.Room] = ids
	}
	if _, dup := ids[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	ids[msg.ID] = struct{}{}
	handlers := make([]MessageHandler, 0, len(s.msgSubs[msg.Room]))
	for _, fn := range s.msgSubs[msg.Room] {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (s *Session) deliverTyping(t wire.Typing) {
	s.mu.Lock()
	handlers := make([]TypingHandler, 0, len(s.typSubs[t.Room]))
	for _, fn := range s.typSubs[t.Room] {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(t)
	}
}

// Join requests membership in a room. Idempotent, and remembered for
// replay across reconnects.
func (s *Session) Join(room string) {
	s.mu.Lock()
	already := s.joined[room]
	s.joined[room] = true
	live := s.state == StateConnected
	s.mu.Unlock()
	if already || !live {
		return
	}
	if err := s.writeEnvelope(wire.Envelope{Event: wire.EventJoin, Room: room}); err != nil {
		s.log.Warn("chatclient: join write failed", zap.String("room", room), zap.Error(err))
	}
}

// Leave drops membership; no further messages for the room arrive after
// the server processes it. Idempotent.
func (s *Session) Leave(room string) {
	s.mu.Lock()
	member := s.joined[room]
	delete(s.joined, room)
	delete(s.seen, room)
	live := s.state == StateConnected
	s.mu.Unlock()
	if !member || !live {
		return
	}
	if err := s.writeEnvelope(wire.Envelope{Event: wire.EventLeave, Room: room}); err != nil {
		s.log.Warn("chatclient: leave write failed", zap.String("room", room), zap.Error(err))
	}
}

// Subscribe registers a message handler and joins the room. The returned
// function removes the handler, and leaves the room when it was the last
// handler standing.
func (s *Session) Subscribe(room string, fn MessageHandler) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.msgSubs[room] == nil {
		s.msgSubs[room] = make(map[int]MessageHandler)
	}
	s.msgSubs[room][id] = fn
	s.mu.Unlock()

	s.Join(room)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.msgSubs[room], id)
			last := len(s.msgSubs[room]) == 0
			if last {
				delete(s.msgSubs, room)
			}
			s.mu.Unlock()
			if last {
				s.Leave(room)
			}
		})
	}
}

// SubscribeToTyping registers a typing handler for a room. Typing
// signals only arrive for rooms the session has joined.
func (s *Session) SubscribeToTyping(room string, fn TypingHandler) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.typSubs[room] == nil {
		s.typSubs[room] = make(map[int]TypingHandler)
	}
	s.typSubs[room][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.typSubs[room], id)
			if len(s.typSubs[room]) == 0 {
				delete(s.typSubs, room)
			}
			s.mu.Unlock()
		})
	}
}

// Send submits a message and waits for the server ack. Content is
// trimmed and validated before anything touches the wire.
func (s *Session) Send(ctx context.Context, room, content string, attachment *wire.Attachment) error {
	trimmed, ok := wire.ValidContent(content)
	if !ok {
		if trimmed == "" {
			return ErrEmptyContent
		}
		return ErrContentTooLong
	}

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	seq := uuid.New().String()
	ch := make(chan wire.Envelope, 1)
	s.acks[seq] = ch
	s.mu.Unlock()

	env := wire.Envelope{
		Event:      wire.EventSend,
		Seq:        seq,
		Room:       room,
		Content:    trimmed,
		Attachment: attachment,
	}
	if err := s.writeEnvelope(env); err != nil {
		s.dropAck(seq)
		return ErrNotConnected
	}

	select {
	case ack := <-ch:
		switch ack.Code {
		case wire.AckOK, "":
			return nil
		case wire.AckRoomRejected:
			return ErrRoomRejected
		case wire.AckInvalidMessage:
			return ErrInvalidMessage
		default:
			if ack.Error != "" {
				return fmt.Errorf("chatclient: send failed: %s", ack.Error)
			}
			return fmt.Errorf("chatclient: send failed: %s", ack.Code)
		}
	case <-time.After(s.opts.AckTimeout):
		s.dropAck(seq)
		return ErrAckTimeout
	case <-ctx.Done():
		s.dropAck(seq)
		return ctx.Err()
	case <-s.closed:
		s.dropAck(seq)
		return ErrNotConnected
	}
}

// SendTyping fires a typing signal without waiting for anything. Lost
// frames are acceptable, the signal is ephemeral.
func (s *Session) SendTyping(room string, typing bool) {
	s.mu.Lock()
	live := s.state == StateConnected
	s.mu.Unlock()
	if !live {
		return
	}
	env := wire.Envelope{
		Event:  wire.EventTyping,
		Room:   room,
		Typing: &wire.Typing{Room: room, Typing: typing},
	}
	if err := s.writeEnvelope(env); err != nil {
		s.log.Debug("chatclient: typing write failed", zap.Error(err))
	}
}

// State current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rooms currently joined rooms, in no particular order.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.joined))
	for room := range s.joined {
		rooms = append(rooms, room)
	}
	return rooms
}

// Disconnect closes the session for good; no reconnection follows and
// the joined-room set is forgotten. Idempotent.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.lifeCancel()
	})
	s.mu.Lock()
	conn := s.conn
	s.joined = make(map[string]bool)
	s.seen = make(map[string]map[string]struct{})
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	s.setState(StateDisconnected, nil)
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	cb := s.opts.OnStateChange
	s.mu.Unlock()
	if cb != nil {
		cb(st, err)
	}
}

func (s *Session) writeEnvelope(env wire.Envelope) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, env.Encode())
}

func (s *Session) dropAck(seq string) {
	s.mu.Lock()
	delete(s.acks, seq)
	s.mu.Unlock()
}

func (s *Session) failPendingAcks() {
	s.mu.Lock()
	pending := s.acks
	s.acks = make(map[string]chan wire.Envelope)
	s.mu.Unlock()
	for seq, ch := range pending {
		ch <- wire.Envelope{Event: wire.EventAck, Seq: seq, Code: wire.AckInternal, Error: "connection lost"}
	}
}
