package main

import (
	"bufio"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/projection"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress  string `env:"RELAY_GRPC_ADDR,default=localhost:50051"`
	Token          string `env:"RELAY_TOKEN,required=true"`
	PeerID         string `env:"RELAY_PEER_ID,required=true"`
	ConversationID string `env:"RELAY_CONVERSATION_ID,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run opens a session, prints what the peer does and sends every stdin line as a message.
// Commands: /read acknowledges the whole conversation, /who shows the peer presence,
// /typing and /stop toggle the typing indicator.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(config.ServerAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	relay := client.NewRealtimeClient(conn)
	session, err := relay.Connect(ctx, config.Token)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open stream: %w", err)
	}
	log.Info("Connected, type a message and press enter (Ctrl+C to quit)", "server", config.ServerAddress)

	peer := chat.UserID(config.PeerID)
	timeline := projection.NewTimeline("")
	streamErr := make(chan error, 1)
	go func() {
		for {
			envelope, err := session.Recv()
			if err != nil {
				streamErr <- err
				return
			}
			data := map[string]any{}
			if len(envelope.Data) > 0 {
				_ = json.Unmarshal(envelope.Data, &data)
			}
			display(event.Name(envelope.Type), data, timeline, peer)
			// Reading a message on screen is reading it.
			if envelope.Type == string(event.MessageNewName) && data["senderId"] == string(peer) {
				_ = session.Send(event.MessageReadAck, "", map[string]any{"messageId": data["id"]})
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	target := map[string]any{"conversationId": config.ConversationID, "receiverId": config.PeerID}
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			_ = session.Close()
			return exitOK, nil
		case err := <-streamErr:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		case line, ok := <-lines:
			if !ok {
				_ = session.Close()
				return exitOK, nil
			}
			var err error
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "/read":
				err = session.Send(event.ConversationRead, "", map[string]any{"conversationId": config.ConversationID})
			case "/typing":
				err = session.Send(event.TypingStart, "", target)
			case "/stop":
				err = session.Send(event.TypingStop, "", target)
			case "/who":
				presence, perr := relay.GetPresence(ctx, config.Token, peer)
				if perr != nil {
					color.Red.Printf("presence: %v\n", perr)
					continue
				}
				color.Gray.Printf("%s online=%t last seen %s\n", presence.UserID, presence.Online, presence.LastSeen.Format(time.DateTime))
			default:
				err = session.Send(event.MessageSend, "", map[string]any{
					"conversationId": config.ConversationID,
					"receiverId":     config.PeerID,
					"content":        line,
				})
			}
			if err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func display(name event.Name, data map[string]any, timeline *projection.Timeline, peer chat.UserID) {
	switch name {
	case event.MessageNewName, event.MessageDeliveredName, event.MessageReadName:
		m, changed := timeline.Consume(name, data)
		if !changed {
			return
		}
		author := "me"
		if m.SenderID == peer {
			author = "them"
		}
		color.Printf("<cyan>[%s]</> <bold>%s</>: %s <gray>(%s)</>\n",
			m.CreatedAt.Local().Format(time.TimeOnly), author, m.Content, m.Status)
	case event.UserOnlineName:
		color.Green.Printf("%v is online\n", data["displayName"])
	case event.UserOfflineName:
		color.Gray.Printf("%v went offline\n", data["displayName"])
	case event.TypingStartedName:
		color.Gray.Printf("%v is typing...\n", data["displayName"])
	case event.ErrorName:
		color.Red.Printf("error %v: %v\n", data["code"], data["message"])
	}
}
