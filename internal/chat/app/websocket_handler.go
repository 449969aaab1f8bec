package app

import (
	"context"
	"sync"
	"time"

	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/middlewares"
	"campus_chat_service/pkg/wire"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const pingInterval = 1 * time.Minute

// ChatWebsocketHandler owns the per-connection loop: auth context comes in
// through fiber locals, join/leave manage pub/sub subscriptions, send is
// acked, typing is fire and forget.
type ChatWebsocketHandler struct {
	messageUC  *SendMessageUseCase
	presenceUC *PresenceUseCase
	pubsub     repository.RoomPubSub
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	messageUC *SendMessageUseCase,
	presenceUC *PresenceUseCase,
	pubsub repository.RoomPubSub,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		messageUC:  messageUC,
		presenceUC: presenceUC,
		pubsub:     pubsub,
	}
}

// wsConn one upgraded connection and its membership state
type wsConn struct {
	conn   *websocket.Conn
	connID string
	userID string
	name   string

	// gorilla-style conns allow one concurrent writer only
	writeMu sync.Mutex

	// joined rooms, each with the cancel that tears its subscription down
	joined map[string]context.CancelFunc
}

// HandleConnection is the websocket entry point
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	userName, _ := conn.Locals(middlewares.TokenUserName).(string)
	logger.Log.Info("websocket connected", zap.String("userID", userID))

	c := &wsConn{
		conn:   conn,
		connID: uuid.New().String(),
		userID: userID,
		name:   userName,
		joined: make(map[string]context.CancelFunc),
	}

	ticker := time.NewTicker(pingInterval)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.String("userID", userID))
		for room, cancelRoom := range c.joined {
			cancelRoom()
			delete(c.joined, room)
		}
		h.presenceUC.ConnectionClosed(ctx, userID)
		conn.Close()
		cancel()
	}()

	// fiber handles close/ping/pong internally, the handlers only surface them
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// every connection hears presence announcements
	h.pubsub.Subscribe(ctxClose, repository.PresenceChannel, func(f repository.Frame) {
		h.deliver(c, f)
	})
	h.presenceUC.ConnectionOpened(ctx, userID)

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("userID", userID))
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.execWebsocketAction(ctx, ctxClose, c, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx, connCtx context.Context, c *wsConn, msg []byte) {
	env, err := wire.Decode(msg)
	if err != nil {
		logger.Log.Errorf("frame decode error:", err)
		return
	}

	switch env.Event {
	case wire.EventJoin:
		h.join(connCtx, c, env.Room)

	case wire.EventLeave:
		h.leave(c, env.Room)

	case wire.EventSend:
		h.send(ctx, c, env)

	case wire.EventTyping:
		// best effort, an error here is deliberately dropped
		typing := env.Typing != nil && env.Typing.Typing
		_ = h.presenceUC.Typing(ctx, c.connID, env.Room, c.userID, c.name, typing)

	default:
		h.sendEnvelope(c, wire.Envelope{
			Event: wire.EventAck,
			Seq:   env.Seq,
			Code:  wire.AckInvalidMessage,
			Error: "unknown event",
		})
	}
}

// join subscribes the connection to the room channel. Joining twice is a
// no-op, the membership set is the set of live subscriptions.
func (h *ChatWebsocketHandler) join(connCtx context.Context, c *wsConn, room string) {
	if !wire.ValidRoom(room) {
		h.sendEnvelope(c, wire.Envelope{
			Event: wire.EventJoin,
			Room:  room,
			Code:  wire.AckRoomRejected,
			Error: "invalid room name",
		})
		return
	}

	if _, ok := c.joined[room]; ok {
		return
	}

	roomCtx, cancelRoom := context.WithCancel(connCtx)
	c.joined[room] = cancelRoom

	h.pubsub.Subscribe(roomCtx, repository.RoomChannel(room), func(f repository.Frame) {
		h.deliver(c, f)
	})
	logger.Log.Debug("room joined", zap.String("userID", c.userID), zap.String("room", room))
}

// leave cancels the room subscription. Frames already dispatched before the
// cancel may still arrive, there is no synchronous barrier.
func (h *ChatWebsocketHandler) leave(c *wsConn, room string) {
	cancelRoom, ok := c.joined[room]
	if !ok {
		return
	}
	cancelRoom()
	delete(c.joined, room)
	logger.Log.Debug("room left", zap.String("userID", c.userID), zap.String("room", room))
}

func (h *ChatWebsocketHandler) send(ctx context.Context, c *wsConn, env wire.Envelope) {
	msg, err := h.messageUC.Execute(ctx, env.Room, c.userID, c.name, env.Content, env.Attachment)

	ack := wire.Envelope{
		Event: wire.EventAck,
		Seq:   env.Seq,
		Room:  env.Room,
		Code:  wire.AckOK,
	}
	switch {
	case err == nil:
		ack.MessageID = msg.ID
	case err == ErrRoomRejected:
		ack.Code = wire.AckRoomRejected
		ack.Error = err.Error()
	case err == ErrInvalidContent:
		ack.Code = wire.AckInvalidMessage
		ack.Error = err.Error()
	default:
		ack.Code = wire.AckInternal
		ack.Error = err.Error()
	}

	if ack.Code != wire.AckOK {
		logger.Log.Error("websocket send rejected",
			zap.String("userID", c.userID), zap.String("room", env.Room), zap.String("err", ack.Error))
	}
	h.sendEnvelope(c, ack)
}

// deliver writes a fan-out frame, honoring the sender-exclusion mark
func (h *ChatWebsocketHandler) deliver(c *wsConn, f repository.Frame) {
	if f.Except != "" && f.Except == c.connID {
		return
	}
	h.sendEnvelope(c, f.Envelope)
}

func (h *ChatWebsocketHandler) sendEnvelope(c *wsConn, env wire.Envelope) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, env.Encode()); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}
