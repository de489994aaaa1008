package main

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/services"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
	}
	os.Exit(code)
}

// run creates sample users with a conversation for every pair and prints a fresh token for each.
// Existing users are reused, so running it twice only renews the tokens.
// The store must not be opened by a running server.
func run() (int, error) {
	names := flag.String("users", "alice,bob,carol", "Comma separated display names")
	exportEnv := flag.Bool("env", false, "Print the e2e environment of the first two users instead of a table")
	flag.Parse()

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()

	store := repositories.NewStore(db, logger, config.HistoryPageSize)
	authService := services.NewAuthService(store, auth.NewTokenIssuer(config.JwtSecret, config.AuthTokenDuration))

	type seeded struct {
		user  chat.User
		token services.Token
	}
	var users []seeded
	for _, name := range strings.Split(*names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		user, token, err := authService.Register(ctx, name)
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			if user, err = store.FindUserByName(ctx, name); err == nil {
				token, err = authService.IssueToken(ctx, user.ID)
			}
		}
		if err != nil {
			return exitRuntime, fmt.Errorf("seeding %q: %w", name, err)
		}
		users = append(users, seeded{user: user, token: token})
	}

	conversations := make(map[string]chat.ConversationID)
	for i := range users {
		for j := i + 1; j < len(users); j++ {
			c, err := store.FindOrCreateConversation(ctx, users[i].user.ID, users[j].user.ID)
			if err != nil {
				return exitRuntime, fmt.Errorf("conversation %s/%s: %w",
					users[i].user.DisplayName, users[j].user.DisplayName, err)
			}
			conversations[users[i].user.DisplayName+"/"+users[j].user.DisplayName] = c.ID
		}
	}

	if *exportEnv {
		if len(users) < 2 {
			return exitConfig, fmt.Errorf("-env needs at least two users")
		}
		a, b := users[0], users[1]
		fmt.Printf("export E2E_ALICE_ID=%s\n", a.user.ID)
		fmt.Printf("export E2E_ALICE_TOKEN=%s\n", a.token)
		fmt.Printf("export E2E_BOB_ID=%s\n", b.user.ID)
		fmt.Printf("export E2E_BOB_TOKEN=%s\n", b.token)
		fmt.Printf("export E2E_CONVERSATION_ID=%s\n", conversations[a.user.DisplayName+"/"+b.user.DisplayName])
		return exitOK, nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Display name", "User ID", "Token"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, u := range users {
		table.Append([]string{u.user.DisplayName, string(u.user.ID), u.token.String()})
	}
	table.Render()

	fmt.Println()
	pairs := tablewriter.NewWriter(os.Stdout)
	pairs.SetHeader([]string{"Pair", "Conversation ID"})
	pairs.SetBorder(false)
	for pair, id := range conversations {
		pairs.Append([]string{pair, string(id)})
	}
	pairs.Render()
	return exitOK, nil
}
