package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/storage"

	"github.com/joho/godotenv"
)

const usage = `Usage: admin <command> [args]

Commands:
  online                      users currently online (needs REDIS_ADDR)
  clear-online                drop the mirrored online set
  users                       list users
  chats <user_id>             list chats of a user
  create-chat <id_a> <id_b>   find or create the chat between two users
  messages <chat_id>          print the history of a chat`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "online", "clear-online":
		if !cfg.Redis.Enabled() {
			log.Fatal("REDIS_ADDR is not set; the online set is only mirrored to Redis")
		}
		rdb, err := storage.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer rdb.Close()
		presence := storage.NewRedisPresence(rdb)

		if command == "clear-online" {
			if err := presence.Clear(ctx); err != nil {
				log.Fatalf("Error clearing online set: %v", err)
			}
			fmt.Println("Online set cleared.")
			return
		}
		ids, err := presence.OnlineUsers(ctx)
		if err != nil {
			log.Fatalf("Error reading online set: %v", err)
		}
		fmt.Printf("%d user(s) online\n", len(ids))
		for _, id := range ids {
			fmt.Println(id)
		}

	case "users", "chats", "create-chat", "messages":
		store, closeStore, err := storage.Open(ctx, cfg.Store)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer closeStore()

		if err := runStoreCommand(ctx, store, command, args); err != nil {
			log.Fatalf("Error: %v", err)
		}

	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func runStoreCommand(ctx context.Context, s storage.Storage, command string, args []string) error {
	switch command {
	case "users":
		users, err := s.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%s\t%s\t%s\n", u.ID, u.Name, u.Email)
		}

	case "chats":
		if len(args) != 1 {
			return fmt.Errorf("usage: admin chats <user_id>")
		}
		chats, err := s.ListChats(ctx, args[0])
		if err != nil {
			return err
		}
		for _, c := range chats {
			fmt.Printf("%s\t%s\n", c.ID, strings.Join(c.Members, ","))
		}

	case "create-chat":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin create-chat <id_a> <id_b>")
		}
		chat, created, err := s.CreateChat(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Chat %s created.\n", chat.ID)
		} else {
			fmt.Printf("Chat %s already exists.\n", chat.ID)
		}

	case "messages":
		if len(args) != 1 {
			return fmt.Errorf("usage: admin messages <chat_id>")
		}
		if _, err := s.GetChatByID(ctx, args[0]); err != nil {
			return fmt.Errorf("chat %s: %w", args[0], err)
		}
		msgs, err := s.ListMessages(ctx, args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.Text)
		}
	}
	return nil
}
