package bdd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"campus_chat_service/internal/chat/app"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/chatclient"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/middlewares"
	testtool "campus_chat_service/pkg/test_tool"
	"campus_chat_service/pkg/wire"
)

const bddPort = 8093

// memMessageRepo keeps messages in memory so the suite needs no database
type memMessageRepo struct {
	mu     sync.Mutex
	byRoom map[string][]wire.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{byRoom: make(map[string][]wire.Message)}
}

func (r *memMessageRepo) Insert(_ context.Context, msg *wire.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRoom[msg.Room] = append(r.byRoom[msg.Room], *msg)
	return nil
}

func (r *memMessageRepo) FindRecent(_ context.Context, room string, limit int64) ([]wire.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.byRoom[room]
	if int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	out := make([]wire.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// chatSuite scenario state: one chatclient session per persona
type chatSuite struct {
	history *app.HistoryUseCase

	mu       sync.Mutex
	managers map[string]*chatclient.Manager
	sessions map[string]*chatclient.Session
	received map[string][]wire.Message
	sendErr  error
}

var suiteState = &chatSuite{}

func startChatServer() *fiber.App {
	logger.SetNewNop()

	msgRepo := newMemMessageRepo()
	pubsub := repository.NewLocalPubSub()

	sendUC := app.NewSendMessageUseCase(msgRepo, pubsub, nil)
	presenceUC := app.NewPresenceUseCase(pubsub)
	suiteState.history = app.NewHistoryUseCase(msgRepo)

	wsHandler := app.NewChatWebsocketHandler(sendUC, presenceUC, pubsub)

	srv := fiber.New()
	srv.Use(middlewares.JWTMiddleware())
	srv.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleConnection(context.Background(), c)
	}))

	go func() {
		if err := srv.Listen(fmt.Sprintf(":%d", bddPort)); err != nil {
			log.Fatalf("failed to start bdd chat server: %v", err)
		}
	}()
	time.Sleep(time.Second)
	return srv
}

func TestChatFeatures(t *testing.T) {
	suite := godog.TestSuite{
		TestSuiteInitializer: func(ctx *godog.TestSuiteContext) {
			var srv *fiber.App
			ctx.BeforeSuite(func() {
				srv = startChatServer()
			})
			ctx.AfterSuite(func() {
				if srv != nil {
					srv.Shutdown()
				}
			})
		},
		ScenarioInitializer: InitializeChatScenario,
		Options: &godog.Options{
			Paths:  []string{"./featureFiles"},
			Format: "pretty",
			Output: os.Stdout,
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// InitializeChatScenario maps the Gherkin steps onto the client SDK
func InitializeChatScenario(s *godog.ScenarioContext) {
	s.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		suiteState.mu.Lock()
		suiteState.managers = make(map[string]*chatclient.Manager)
		suiteState.sessions = make(map[string]*chatclient.Session)
		suiteState.received = make(map[string][]wire.Message)
		suiteState.sendErr = nil
		suiteState.mu.Unlock()
		return ctx, nil
	})
	s.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		suiteState.mu.Lock()
		managers := suiteState.managers
		suiteState.mu.Unlock()
		for _, m := range managers {
			m.Disconnect()
		}
		return ctx, nil
	})

	s.Step(`^"([^"]*)" is signed in$`, isSignedIn)
	s.Step(`^"([^"]*)" joined room "([^"]*)"$`, joinedRoom)
	s.Step(`^"([^"]*)" leaves room "([^"]*)"$`, leavesRoom)
	s.Step(`^"([^"]*)" sends "([^"]*)" to room "([^"]*)"$`, sendsToRoom)
	s.Step(`^"([^"]*)" receives "([^"]*)"$`, receives)
	s.Step(`^"([^"]*)" does not receive "([^"]*)"$`, doesNotReceive)
	s.Step(`^the send is rejected as an invalid room$`, sendRejectedInvalidRoom)
	s.Step(`^the send is rejected as empty content$`, sendRejectedEmptyContent)
	s.Step(`^the history of room "([^"]*)" is "([^"]*)", "([^"]*)"$`, historyOfRoomIs)
}

func isSignedIn(user string) error {
	tok, err := testtool.SignTestToken("u-"+user, user)
	if err != nil {
		return err
	}
	m := chatclient.NewManager(chatclient.Options{
		URL: fmt.Sprintf("ws://127.0.0.1:%d/ws", bddPort),
	})
	sess, err := m.Initialize(context.Background(), tok)
	if err != nil {
		return err
	}
	suiteState.mu.Lock()
	suiteState.managers[user] = m
	suiteState.sessions[user] = sess
	suiteState.mu.Unlock()
	return nil
}

func sessionOf(user string) (*chatclient.Session, error) {
	suiteState.mu.Lock()
	defer suiteState.mu.Unlock()
	sess, ok := suiteState.sessions[user]
	if !ok {
		return nil, fmt.Errorf("%q is not signed in", user)
	}
	return sess, nil
}

func joinedRoom(user, room string) error {
	sess, err := sessionOf(user)
	if err != nil {
		return err
	}
	sess.Subscribe(room, func(msg wire.Message) {
		suiteState.mu.Lock()
		suiteState.received[user] = append(suiteState.received[user], msg)
		suiteState.mu.Unlock()
	})
	// let the join land before anything is sent
	time.Sleep(200 * time.Millisecond)
	return nil
}

func leavesRoom(user, room string) error {
	sess, err := sessionOf(user)
	if err != nil {
		return err
	}
	sess.Leave(room)
	time.Sleep(200 * time.Millisecond)
	return nil
}

func sendsToRoom(user, content, room string) error {
	sess, err := sessionOf(user)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sendErr := sess.Send(ctx, room, content, nil)
	suiteState.mu.Lock()
	suiteState.sendErr = sendErr
	suiteState.mu.Unlock()
	return nil
}

func receives(user, content string) error {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		suiteState.mu.Lock()
		for _, msg := range suiteState.received[user] {
			if msg.Content == content {
				suiteState.mu.Unlock()
				return nil
			}
		}
		suiteState.mu.Unlock()
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("%q never received %q", user, content)
}

func doesNotReceive(user, content string) error {
	time.Sleep(time.Second)
	suiteState.mu.Lock()
	defer suiteState.mu.Unlock()
	for _, msg := range suiteState.received[user] {
		if msg.Content == content {
			return fmt.Errorf("%q unexpectedly received %q", user, content)
		}
	}
	return nil
}

func sendRejectedInvalidRoom() error {
	suiteState.mu.Lock()
	defer suiteState.mu.Unlock()
	if !errors.Is(suiteState.sendErr, chatclient.ErrRoomRejected) {
		return fmt.Errorf("expected room rejection, got %v", suiteState.sendErr)
	}
	return nil
}

func sendRejectedEmptyContent() error {
	suiteState.mu.Lock()
	defer suiteState.mu.Unlock()
	if !errors.Is(suiteState.sendErr, chatclient.ErrEmptyContent) {
		return fmt.Errorf("expected empty content rejection, got %v", suiteState.sendErr)
	}
	return nil
}

func historyOfRoomIs(room, first, second string) error {
	page, err := suiteState.history.Recent(context.Background(), room, 10)
	if err != nil {
		return err
	}
	if len(page) != 2 {
		return fmt.Errorf("expected 2 messages, got %d", len(page))
	}
	if page[0].Content != first || page[1].Content != second {
		return fmt.Errorf("wrong order: %q then %q", page[0].Content, page[1].Content)
	}
	return nil
}
