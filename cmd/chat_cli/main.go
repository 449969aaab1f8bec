package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"campus_chat_service/pkg"
	"campus_chat_service/pkg/chatclient"
	"campus_chat_service/pkg/wire"
)

var knownCommands = []string{"/join", "/leave", "/rooms", "/typing", "/history", "/quit"}

func main() {
	wsURL := flag.String("url", "ws://localhost:8084/ws", "chat websocket endpoint")
	httpURL := flag.String("http", "http://localhost:8084", "chat HTTP root for history")
	token := flag.String("token", os.Getenv("CHAT_TOKEN"), "JWT bearer token")
	room := flag.String("room", "global", "room to join on start")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "missing token: pass -token or set CHAT_TOKEN")
		os.Exit(1)
	}

	manager := chatclient.NewManager(chatclient.Options{
		URL: *wsURL,
		OnStateChange: func(state chatclient.State, err error) {
			if err != nil {
				fmt.Printf("* %s (%v)\n", state, err)
				return
			}
			fmt.Printf("* %s\n", state)
		},
		OnRoomRejected: func(room, reason string) {
			fmt.Printf("* join rejected for %s: %s\n", room, reason)
		},
		OnPresence: func(p wire.Presence) {
			if p.Online {
				fmt.Printf("* %s is online\n", p.UserID)
				return
			}
			fmt.Printf("* %s went offline\n", p.UserID)
		},
	})

	ctx := context.Background()
	session, err := manager.Initialize(ctx, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer manager.Disconnect()

	current := *room
	unsubscribe := watchRoom(session, current)
	history := chatclient.NewHistoryClient(*httpURL, *token)

	fmt.Printf("joined %s; type a message, or %s\n", current, strings.Join(knownCommands, " "))
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := session.Send(sendCtx, current, line, nil); err != nil {
				fmt.Printf("* send failed: %v\n", err)
			}
			cancel()
			continue
		}

		fields := strings.Fields(line)
		if !pkg.Contains(knownCommands, fields[0]) {
			fmt.Printf("* unknown command %s\n", fields[0])
			continue
		}
		switch fields[0] {
		case "/join":
			if len(fields) < 2 {
				fmt.Println("* usage: /join <room>")
				continue
			}
			unsubscribe()
			current = fields[1]
			unsubscribe = watchRoom(session, current)
			fmt.Printf("* now in %s\n", current)
		case "/leave":
			unsubscribe()
			fmt.Printf("* left %s\n", current)
		case "/rooms":
			fmt.Printf("* joined: %s\n", strings.Join(session.Rooms(), ", "))
		case "/typing":
			session.SendTyping(current, true)
		case "/history":
			fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			msgs, err := history.FetchMessages(fetchCtx, current, 20)
			cancel()
			if err != nil {
				fmt.Printf("* history failed: %v\n", err)
				continue
			}
			for _, m := range msgs {
				printMessage(m)
			}
		case "/quit":
			return
		}
	}
}

func watchRoom(session *chatclient.Session, room string) func() {
	cancelMsg := session.Subscribe(room, printMessage)
	cancelTyping := session.SubscribeToTyping(room, func(t wire.Typing) {
		if t.Typing {
			fmt.Printf("* %s is typing...\n", t.UserName)
		}
	})
	return func() {
		cancelTyping()
		cancelMsg()
	}
}

func printMessage(m wire.Message) {
	ts := time.UnixMilli(m.CreatedAt).Format("15:04:05")
	name := m.UserName
	if name == "" {
		name = m.UserID
	}
	fmt.Printf("[%s] %s: %s\n", ts, name, m.Content)
	if m.Attachment != nil {
		fmt.Printf("        attachment %s (%d bytes) %s\n", m.Attachment.Name, m.Attachment.Size, m.Attachment.URL)
	}
}
