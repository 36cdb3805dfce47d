// Command chatcli is a terminal client for a meeting room's chat.
// It joins a room through the portal API, dials the broadcast relay
// and runs a full chat session: send, pin, unpin, clear, unread.
// Meant for debugging rooms without a browser.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lmoretti/atrium/backend/internal/chat"
	"github.com/lmoretti/atrium/backend/internal/config"
	"github.com/lmoretti/atrium/backend/internal/models"
	"github.com/lmoretti/atrium/backend/internal/supabase"
	"github.com/lmoretti/atrium/backend/internal/websocket"
)

func main() {
	var (
		server = flag.String("server", "ws://localhost:8080", "relay server URL")
		roomID = flag.String("room", "", "room ID to join")
		name   = flag.String("name", "cli", "display name")
		role   = flag.String("role", "attendee", "role: host, moderator or attendee")
	)
	flag.Parse()

	if *roomID == "" {
		log.Fatal("-room is required")
	}

	cfg := config.Load()
	identity := chat.Identity{
		ParticipantID: models.NewProvisionalID(),
		Name:          *name,
		Role:          models.Role(*role),
	}

	var persistence chat.Persistence
	if cfg.SupabaseURL != "" {
		persistence = supabase.NewClient(cfg)
	}

	session, channel, err := connect(cfg, *server, *roomID, identity, persistence)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer channel.Close()
	defer session.Close()

	fmt.Printf("Joined room %s as %s. Commands: /pin <id>, /unpin <id>, /pins, /clear, /show, /hide, /quit\n",
		*roomID, identity.SenderName())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := session.Send(line); err != nil {
				fmt.Printf("! %v\n", err)
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/pin":
			session.Pin(arg)
		case "/unpin":
			session.Unpin(arg)
		case "/pins":
			for _, e := range session.Pinned() {
				fmt.Printf("  [%s] %s: %s\n", e.ID, models.DisplayName(e.SenderName), e.Text)
			}
		case "/clear":
			session.Clear()
		case "/show":
			session.SetVisible(true)
		case "/hide":
			session.SetVisible(false)
		case "/quit":
			return
		default:
			fmt.Printf("! unknown command %s\n", cmd)
		}
	}
}

// connect builds the session, dials the relay and hydrates history.
func connect(cfg *config.Config, server, roomID string, identity chat.Identity, persistence chat.Persistence) (*chat.Session, *websocket.Channel, error) {
	var session *chat.Session

	// The read loop can deliver frames before the session exists;
	// hold them until it does.
	ready := make(chan struct{})
	channel, err := websocket.DialRoom(server, roomID, identity.ParticipantID, func(raw []byte) {
		<-ready
		session.HandleEvent(raw)
	})
	if err != nil {
		return nil, nil, err
	}

	session = chat.NewSession(chat.Config{
		RoomID:        roomID,
		Identity:      identity,
		Broadcaster:   channel,
		Persistence:   persistence,
		DedupWindow:   cfg.DedupWindow,
		PromoteWindow: cfg.PromoteWindow,
		Callbacks: chat.Callbacks{
			OnMessagesChanged: printNewest,
			OnUnreadChanged: func(count int) {
				if count > 0 {
					fmt.Printf("  (%d unread)\n", count)
				}
			},
		},
	})
	go session.Run()
	close(ready)

	if err := session.Hydrate(context.Background()); err != nil {
		log.Printf("[Chat] Hydration failed, starting empty: %v", err)
	}
	return session, channel, nil
}

// printNewest echoes the latest message to the terminal.
func printNewest(messages []models.Message) {
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	fmt.Printf("%s %s: %s\n",
		last.Timestamp.Local().Format("15:04:05"),
		models.DisplayName(last.SenderName),
		last.Text)
}
