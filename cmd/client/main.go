package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"chatrelay/backend/internal/chatclient"
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const help = `Commands:
  /chats           list your chats
  /open <n>        open chat number n
  /users           users you have no chat with yet
  /new <user_id>   start a chat
  /online          who is online
  /unread          unread notifications
  /read            mark all notifications read
  /quit            log out and exit
Anything else is sent to the open chat.`

func main() {
	baseURL := flag.String("url", "http://localhost:5001", "API base URL")
	email := flag.String("email", "", "account e-mail")
	password := flag.String("password", "", "account password")
	name := flag.String("register", "", "register a new account with this name before logging in")
	flag.Parse()

	if err := logger.SetLevel("warn"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	defer logger.Sync()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password are required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialer := &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	client, err := chatclient.New(*baseURL, chatclient.WithDialer(dialer))
	if err != nil {
		logger.Error("bad url", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	var acc *chatclient.Account
	if *name != "" {
		acc, err = client.REST.Register(ctx, *name, *email, *password)
	} else {
		acc, err = client.REST.Login(ctx, *email, *password)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	subscribe(client, acc.ID)
	if err := client.Login(ctx, acc.User()); err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s (%s)\n%s\n", acc.Name, acc.ID, help)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !handleLine(ctx, client, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

func subscribe(client *chatclient.Client, selfID string) {
	client.On(models.EventGetMessage, func(ev models.Event) {
		var msg models.RelayMessage
		if ev.Decode(&msg) == nil {
			if s := client.State(); s.CurrentChat != nil && s.CurrentChat.ID == msg.ChatID {
				fmt.Printf("%s: %s\n", msg.SenderID, msg.Text)
			}
		}
	})
	client.On(models.EventGetNotification, func(ev models.Event) {
		var n models.Notification
		if ev.Decode(&n) == nil && n.SenderID != selfID {
			if unread := client.State().UnreadFrom(n.SenderID); len(unread) > 0 {
				fmt.Printf("* %d new message(s) from %s\n", len(unread), n.SenderID)
			}
		}
	})
}

// handleLine runs one command and reports whether to keep going.
func handleLine(ctx context.Context, client *chatclient.Client, line string) bool {
	if line == "" {
		return true
	}
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit":
		return false

	case "/chats":
		if err := client.RefreshChats(ctx); err != nil {
			fmt.Println("error:", err)
		}
		s := client.State()
		for i, c := range s.Chats {
			other, _ := c.OtherMember(s.User.ID)
			status := "offline"
			if s.IsOnline(other) {
				status = "online"
			}
			fmt.Printf("%d) %s [%s]\n", i+1, other, status)
		}

	case "/open":
		s := client.State()
		if len(fields) != 2 {
			fmt.Println("usage: /open <n>")
			return true
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(s.Chats) {
			fmt.Println("no such chat")
			return true
		}
		if err := client.SelectChat(ctx, s.Chats[n-1]); err != nil {
			fmt.Println("error:", err)
			return true
		}
		for _, m := range client.State().Messages {
			fmt.Printf("%s: %s\n", m.SenderID, m.Text)
		}

	case "/users":
		users, err := client.PotentialChats(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return true
		}
		for _, u := range users {
			fmt.Printf("%s\t%s\n", u.ID, u.Name)
		}

	case "/new":
		if len(fields) != 2 {
			fmt.Println("usage: /new <user_id>")
			return true
		}
		chat, err := client.CreateChat(ctx, fields[1])
		if err != nil {
			fmt.Println("error:", err)
			return true
		}
		fmt.Println("chat", chat.ID, "ready")

	case "/online":
		for _, u := range client.State().OnlineUsers {
			fmt.Println(u.UserID)
		}

	case "/unread":
		for _, n := range client.State().Notifications {
			if !n.IsRead {
				fmt.Printf("%s at %s\n", n.SenderID, n.Date.Local().Format("15:04"))
			}
		}

	case "/read":
		client.MarkAllRead()

	default:
		if strings.HasPrefix(fields[0], "/") {
			fmt.Println(help)
			return true
		}
		if _, err := client.SendText(ctx, line); err != nil {
			fmt.Println("error:", err)
		}
	}
	return true
}
