package chatclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_chat_service/pkg/wire"
)

// fakeChatServer speaks the chat wire protocol in-process so session
// behavior can be tested without a running service.
type fakeChatServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu           sync.Mutex
	rejectAuth   bool
	upgradeDelay time.Duration
	conns        []*fakeConn
	rooms        map[string]map[*fakeConn]bool
	received     map[*fakeConn][]wire.Envelope
	nextID       int
}

type fakeConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *fakeConn) write(env wire.Envelope) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteMessage(websocket.TextMessage, env.Encode())
}

func newFakeChatServer(t *testing.T) *fakeChatServer {
	f := &fakeChatServer{
		rooms:    make(map[string]map[*fakeConn]bool),
		received: make(map[*fakeConn][]wire.Envelope),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeChatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeChatServer) setRejectAuth(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAuth = reject
}

func (f *fakeChatServer) setUpgradeDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upgradeDelay = d
}

func (f *fakeChatServer) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeChatServer) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

func (f *fakeChatServer) roomSize(room string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[room])
}

func (f *fakeChatServer) joinsOn(c *fakeConn) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rooms []string
	for _, env := range f.received[c] {
		if env.Event == wire.EventJoin {
			rooms = append(rooms, env.Room)
		}
	}
	return rooms
}

func (f *fakeChatServer) closeAllConns() {
	f.mu.Lock()
	conns := make([]*fakeConn, len(f.conns))
	copy(conns, f.conns)
	f.mu.Unlock()
	for _, c := range conns {
		c.ws.Close()
	}
}

func (f *fakeChatServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	reject := f.rejectAuth
	delay := f.upgradeDelay
	f.mu.Unlock()
	if reject || r.URL.Query().Get("auth") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fc := &fakeConn{ws: ws}
	f.mu.Lock()
	f.conns = append(f.conns, fc)
	f.mu.Unlock()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			f.mu.Lock()
			for _, members := range f.rooms {
				delete(members, fc)
			}
			f.mu.Unlock()
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			continue
		}
		f.mu.Lock()
		f.received[fc] = append(f.received[fc], env)
		f.mu.Unlock()

		switch env.Event {
		case wire.EventJoin:
			if !wire.ValidRoom(env.Room) {
				fc.write(wire.Envelope{Event: wire.EventJoin, Room: env.Room, Code: wire.AckRoomRejected, Error: "invalid room name"})
				continue
			}
			f.mu.Lock()
			if f.rooms[env.Room] == nil {
				f.rooms[env.Room] = make(map[*fakeConn]bool)
			}
			f.rooms[env.Room][fc] = true
			f.mu.Unlock()
		case wire.EventLeave:
			f.mu.Lock()
			delete(f.rooms[env.Room], fc)
			f.mu.Unlock()
		case wire.EventSend:
			if !wire.ValidRoom(env.Room) {
				fc.write(wire.Envelope{Event: wire.EventAck, Seq: env.Seq, Code: wire.AckRoomRejected, Error: "invalid room name"})
				continue
			}
			trimmed, ok := wire.ValidContent(env.Content)
			if !ok {
				fc.write(wire.Envelope{Event: wire.EventAck, Seq: env.Seq, Code: wire.AckInvalidMessage, Error: "invalid content"})
				continue
			}
			f.mu.Lock()
			f.nextID++
			msg := wire.Message{
				ID:         fmt.Sprintf("m-%d", f.nextID),
				Room:       env.Room,
				UserID:     "u-test",
				UserName:   "tester",
				Content:    trimmed,
				Attachment: env.Attachment,
				CreatedAt:  time.Now().UnixMilli(),
			}
			members := make([]*fakeConn, 0, len(f.rooms[env.Room]))
			for member := range f.rooms[env.Room] {
				members = append(members, member)
			}
			f.mu.Unlock()
			fc.write(wire.Envelope{Event: wire.EventAck, Seq: env.Seq, Code: wire.AckOK, MessageID: msg.ID})
			for _, member := range members {
				member.write(wire.Envelope{Event: wire.EventMessage, Room: msg.Room, Message: &msg})
			}
		case wire.EventTyping:
			if env.Typing == nil {
				continue
			}
			f.mu.Lock()
			members := make([]*fakeConn, 0, len(f.rooms[env.Typing.Room]))
			for member := range f.rooms[env.Typing.Room] {
				if member != fc {
					members = append(members, member)
				}
			}
			f.mu.Unlock()
			signal := *env.Typing
			signal.UserID = "u-test"
			signal.UserName = "tester"
			for _, member := range members {
				member.write(wire.Envelope{Event: wire.EventTyping, Room: signal.Room, Typing: &signal})
			}
		}
	}
}

func testOptions(f *fakeChatServer) Options {
	return Options{
		URL:            f.wsURL(),
		BackoffBase:    10 * time.Millisecond,
		BackoffCeiling: 50 * time.Millisecond,
		AckTimeout:     2 * time.Second,
	}
}

func TestInitializeRequiresToken(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))
	_, err := m.Initialize(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingToken)
	assert.Nil(t, m.Current())
}

func TestInitializeAuthRejected(t *testing.T) {
	f := newFakeChatServer(t)
	f.setRejectAuth(true)
	m := NewManager(testOptions(f))
	_, err := m.Initialize(context.Background(), "bad-token")
	require.ErrorIs(t, err, ErrAuthRejected)
	assert.Nil(t, m.Current())
}

func TestInitializeIdempotentWhileConnected(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))
	defer m.Disconnect()

	first, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	second, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSendRoundTrip(t *testing.T) {
	f := newFakeChatServer(t)

	sender := NewManager(testOptions(f))
	defer sender.Disconnect()
	receiver := NewManager(testOptions(f))
	defer receiver.Disconnect()

	sendSess, err := sender.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	recvSess, err := receiver.Initialize(context.Background(), "token-b")
	require.NoError(t, err)

	got := make(chan wire.Message, 1)
	recvSess.Subscribe("global", func(msg wire.Message) {
		got <- msg
	})
	sendSess.Join("global")
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sendSess.Send(context.Background(), "global", "  hello  ", nil))

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "global", msg.Room)
		assert.NotEmpty(t, msg.ID)
		assert.NotZero(t, msg.CreatedAt)
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}
}

func TestSendValidation(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))
	defer m.Disconnect()

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)

	assert.ErrorIs(t, sess.Send(context.Background(), "global", "   ", nil), ErrEmptyContent)
	assert.ErrorIs(t, sess.Send(context.Background(), "global", strings.Repeat("x", wire.MaxContentLen+1), nil), ErrContentTooLong)
	assert.ErrorIs(t, sess.Send(context.Background(), "no spaces allowed", "hello", nil), ErrRoomRejected)
}

func TestDuplicateDeliveryCollapses(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))
	defer m.Disconnect()

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)

	var mu sync.Mutex
	var deliveries int
	sess.Subscribe("global", func(wire.Message) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := wire.Message{ID: "dup-1", Room: "global", UserID: "u", Content: "once", CreatedAt: time.Now().UnixMilli()}
	fc := f.conn(0)
	require.NotNil(t, fc)
	fc.write(wire.Envelope{Event: wire.EventMessage, Room: "global", Message: &msg})
	fc.write(wire.Envelope{Event: wire.EventMessage, Room: "global", Message: &msg})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, deliveries)
}

func TestReconnectReplaysJoins(t *testing.T) {
	f := newFakeChatServer(t)

	var mu sync.Mutex
	var states []State
	opts := testOptions(f)
	opts.OnStateChange = func(state State, _ error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	}
	m := NewManager(opts)
	defer m.Disconnect()

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	sess.Join("global")
	sess.Join("study-42")
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 1 && f.roomSize("study-42") == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.closeAllConns()

	require.Eventually(t, func() bool {
		return f.connCount() == 2 && sess.State() == StateConnected
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		rooms := f.joinsOn(f.conn(1))
		return len(rooms) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"global", "study-42"}, f.joinsOn(f.conn(1)))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, StateReconnecting)
	assert.Equal(t, StateConnected, states[len(states)-1])
}

func TestUnsubscribeLeavesRoom(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))
	defer m.Disconnect()

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)

	unsubscribe := sess.Subscribe("global", func(wire.Message) {})
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 1
	}, 2*time.Second, 10*time.Millisecond)

	unsubscribe()
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, sess.Rooms())

	// second call is a no-op
	unsubscribe()
}

func TestTypingExcludesSender(t *testing.T) {
	f := newFakeChatServer(t)

	typist := NewManager(testOptions(f))
	defer typist.Disconnect()
	watcher := NewManager(testOptions(f))
	defer watcher.Disconnect()

	typistSess, err := typist.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	watcherSess, err := watcher.Initialize(context.Background(), "token-b")
	require.NoError(t, err)

	var mu sync.Mutex
	var ownSignals int
	typistSess.SubscribeToTyping("global", func(wire.Typing) {
		mu.Lock()
		ownSignals++
		mu.Unlock()
	})
	got := make(chan wire.Typing, 1)
	watcherSess.SubscribeToTyping("global", func(t wire.Typing) {
		got <- t
	})
	typistSess.Join("global")
	watcherSess.Join("global")
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 2
	}, 2*time.Second, 10*time.Millisecond)

	typistSess.SendTyping("global", true)

	select {
	case signal := <-got:
		assert.True(t, signal.Typing)
		assert.Equal(t, "global", signal.Room)
	case <-time.After(2 * time.Second):
		t.Fatal("typing signal never arrived")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, ownSignals)
}

func TestRoomRejectedCallback(t *testing.T) {
	f := newFakeChatServer(t)

	rejected := make(chan string, 1)
	opts := testOptions(f)
	opts.OnRoomRejected = func(room, _ string) {
		rejected <- room
	}
	m := NewManager(opts)
	defer m.Disconnect()

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	sess.Join("bad room name")

	select {
	case room := <-rejected:
		assert.Equal(t, "bad room name", room)
	case <-time.After(2 * time.Second):
		t.Fatal("rejection never reported")
	}
}

func TestDisconnectDuringReconnectDial(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	sess.Join("global")
	require.Eventually(t, func() bool {
		return f.roomSize("global") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// stall the next handshake so Disconnect lands mid-dial
	f.setUpgradeDelay(400 * time.Millisecond)
	f.closeAllConns()
	require.Eventually(t, func() bool {
		return sess.State() == StateReconnecting
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	m.Disconnect()

	require.Eventually(t, func() bool {
		return sess.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, StateDisconnected, sess.State())
	assert.Empty(t, sess.Rooms())
	if second := f.conn(1); second != nil {
		assert.Empty(t, f.joinsOn(second))
	}
}

func TestDisconnectStopsReconnection(t *testing.T) {
	f := newFakeChatServer(t)
	m := NewManager(testOptions(f))

	sess, err := m.Initialize(context.Background(), "token-a")
	require.NoError(t, err)
	require.Equal(t, 1, f.connCount())

	m.Disconnect()
	require.Eventually(t, func() bool {
		return sess.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, f.connCount())
	assert.Nil(t, m.Current())
	assert.ErrorIs(t, sess.Send(context.Background(), "global", "hello", nil), ErrNotConnected)
}
