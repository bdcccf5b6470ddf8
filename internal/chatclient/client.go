package chatclient

import (
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/session"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrNoChatSelected = errors.New("no chat selected")
	ErrNotConnected   = errors.New("event channel not connected")
)

// Handler receives events from the live channel after the session state has
// been updated. Handlers run on the read goroutine and must not call Logout.
type Handler func(models.Event)

type Option func(*Client)

// WithBackOff replaces the reconnect policy. newBackOff is called once per outage.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

// WithDialer sets the websocket dialer used for the first connection and every reconnect.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client keeps one user's session in sync with the relay.
type Client struct {
	REST *RESTClient

	wsURL      string
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff

	mu     sync.RWMutex
	state  session.State
	subs   map[string]map[uint64]Handler
	nextID uint64
	stop   context.CancelFunc
	done   chan struct{}

	// connMu guards conn and serializes writes on it.
	connMu sync.Mutex
	conn   *websocket.Conn
}

// New creates a client for the API at baseURL (http or https).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	c := &Client{
		REST:       NewRESTClient(strings.TrimSuffix(baseURL, "/")),
		wsURL:      u.String(),
		dialer:     websocket.DefaultDialer,
		newBackOff: defaultBackOff,
		subs:       make(map[string]map[uint64]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// defaultBackOff retries forever with jittered exponential delays until the
// session is closed.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// State returns the current session snapshot.
func (c *Client) State() session.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) update(fn func(session.State) session.State) session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = fn(c.state)
	return c.state
}

// On subscribes h to event. The returned func unsubscribes; Logout releases
// every subscription.
func (c *Client) On(event string, h Handler) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.subs[event] == nil {
		c.subs[event] = make(map[uint64]Handler)
	}
	c.subs[event][id] = h
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs[event], id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) dispatch(ev models.Event) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[ev.Name]))
	for _, h := range c.subs[ev.Name] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Login loads the user's chats, opens the event channel and registers the user on it.
// A dropped channel is re-established in the background until Logout.
func (c *Client) Login(ctx context.Context, user models.User) error {
	c.disconnect()

	c.update(func(s session.State) session.State { return s.Login(user).Connecting() })

	chats, err := c.REST.ListChats(ctx, user.ID)
	if err != nil {
		logger.Warn("load chats failed", zap.String("user", user.ID), zap.Error(err))
	}
	c.update(func(s session.State) session.State { return s.SetChats(chats, err) })

	runCtx, cancel := context.WithCancel(context.Background())
	conn, err := c.connect(ctx, runCtx, user.ID)
	if err != nil {
		cancel()
		c.update(func(s session.State) session.State { return s.Logout() })
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.stop = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(runCtx, conn, user.ID, done)
	return nil
}

// Logout closes the event channel, drops every subscription and clears the session.
func (c *Client) Logout() {
	c.disconnect()

	c.mu.Lock()
	c.state = c.state.Logout()
	c.subs = make(map[string]map[uint64]Handler)
	c.mu.Unlock()
}

// disconnect stops the reconnect loop and closes the channel.
func (c *Client) disconnect() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if done != nil {
		<-done
	}
}

// Close is Logout.
func (c *Client) Close() error {
	c.Logout()
	return nil
}

// connect dials the relay and announces userID. The connection is bound to runCtx:
// once runCtx is done it is closed instead of attached.
func (c *Client) connect(dialCtx, runCtx context.Context, userID string) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(dialCtx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.wsURL, err)
	}

	c.connMu.Lock()
	if runCtx.Err() != nil {
		c.connMu.Unlock()
		conn.Close()
		return nil, runCtx.Err()
	}
	c.conn = conn
	err = c.writeLocked(models.EventAddNewUser, userID)
	if err != nil {
		c.conn = nil
	}
	c.connMu.Unlock()

	if err != nil {
		conn.Close()
		return nil, err
	}

	c.update(func(s session.State) session.State { return s.Connected() })
	logger.Debug("event channel connected", zap.String("user", userID))
	return conn, nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn, userID string, done chan struct{}) {
	defer close(done)

	for {
		err := c.readLoop(conn)
		c.detach(conn)
		if ctx.Err() != nil {
			return
		}

		logger.Warn("event channel lost", zap.String("user", userID), zap.Error(err))
		c.update(func(s session.State) session.State { return s.Disconnected() })

		conn, err = c.reconnect(ctx, userID)
		if err != nil {
			return
		}
	}
}

func (c *Client) reconnect(ctx context.Context, userID string) (*websocket.Conn, error) {
	c.update(func(s session.State) session.State { return s.Connecting() })

	var conn *websocket.Conn
	op := func() error {
		cn, err := c.connect(ctx, ctx, userID)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		conn = cn
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("reconnect failed", zap.Duration("retry_in", next), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) detach(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Warn("malformed frame from relay", zap.Error(err))
			continue
		}
		c.handle(ev)
	}
}

// handle folds a relay event into the session, then notifies subscribers.
func (c *Client) handle(ev models.Event) {
	switch ev.Name {
	case models.EventGetOnlineUsers:
		var users []models.OnlineUser
		if err := ev.Decode(&users); err != nil {
			logger.Warn("bad online set", zap.Error(err))
			return
		}
		c.update(func(s session.State) session.State { return s.SetOnlineUsers(users) })

	case models.EventGetMessage:
		var msg models.RelayMessage
		if err := ev.Decode(&msg); err != nil {
			logger.Warn("bad relayed message", zap.Error(err))
			return
		}
		c.update(func(s session.State) session.State { return s.ReceiveMessage(msg) })

	case models.EventGetNotification:
		var n models.Notification
		if err := ev.Decode(&n); err != nil {
			logger.Warn("bad notification", zap.Error(err))
			return
		}
		c.update(func(s session.State) session.State { return s.ReceiveNotification(n) })
	}

	c.dispatch(ev)
}

func (c *Client) emit(name string, data any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.writeLocked(name, data)
}

func (c *Client) writeLocked(name string, data any) error {
	ev, err := models.NewEvent(name, data)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// RefreshChats reloads the user's chat list.
func (c *Client) RefreshChats(ctx context.Context) error {
	s := c.State()
	if s.User == nil {
		return ErrNotLoggedIn
	}
	chats, err := c.REST.ListChats(ctx, s.User.ID)
	c.update(func(s session.State) session.State { return s.SetChats(chats, err) })
	return err
}

// SelectChat opens chat and loads its history.
func (c *Client) SelectChat(ctx context.Context, chat models.Chat) error {
	c.update(func(s session.State) session.State { return s.SelectChat(chat) })

	msgs, err := c.REST.ListMessages(ctx, chat.ID)
	c.update(func(s session.State) session.State { return s.SetMessages(chat.ID, msgs, err) })
	return err
}

// SendText stores text in the open chat and relays it to the other member.
// Relay failures are logged only; the stored message is the source of truth.
func (c *Client) SendText(ctx context.Context, text string) (*models.Message, error) {
	s := c.State()
	if s.User == nil {
		return nil, ErrNotLoggedIn
	}
	if s.CurrentChat == nil {
		return nil, ErrNoChatSelected
	}
	recipient, ok := s.CurrentChat.OtherMember(s.User.ID)
	if !ok {
		return nil, fmt.Errorf("user %s is not a member of chat %s", s.User.ID, s.CurrentChat.ID)
	}

	msg, err := c.REST.CreateMessage(ctx, s.CurrentChat.ID, s.User.ID, text)
	if err != nil {
		c.update(func(s session.State) session.State { return s.AppendOwnMessage(models.Message{}, err) })
		return nil, err
	}
	c.update(func(s session.State) session.State { return s.AppendOwnMessage(*msg, nil) })

	if err := c.emit(models.EventSendMessage, msg.Relay(recipient)); err != nil {
		logger.Warn("relay skipped", zap.String("chat", msg.ChatID), zap.Error(err))
	}
	return msg, nil
}

// CreateChat opens (or finds) the chat with otherID and adds it to the list.
func (c *Client) CreateChat(ctx context.Context, otherID string) (*models.Chat, error) {
	s := c.State()
	if s.User == nil {
		return nil, ErrNotLoggedIn
	}
	chat, err := c.REST.CreateChat(ctx, s.User.ID, otherID)
	if err != nil {
		return nil, err
	}
	c.update(func(s session.State) session.State { return s.AddChat(*chat) })
	return chat, nil
}

// PotentialChats lists the users the current user has no chat with yet.
func (c *Client) PotentialChats(ctx context.Context) ([]models.User, error) {
	users, err := c.REST.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return c.State().PotentialChats(users), nil
}

func (c *Client) MarkAllRead() {
	c.update(func(s session.State) session.State { return s.MarkAllRead() })
}

// MarkRead marks the sender's notifications read and, when a chat pairs the user
// with the sender, opens it and loads its history.
func (c *Client) MarkRead(ctx context.Context, n models.Notification) error {
	before := c.State().CurrentChat
	s := c.update(func(s session.State) session.State { return s.MarkRead(n) })

	if s.CurrentChat == nil || (before != nil && before.ID == s.CurrentChat.ID) {
		return nil
	}
	chatID := s.CurrentChat.ID
	msgs, err := c.REST.ListMessages(ctx, chatID)
	c.update(func(s session.State) session.State { return s.SetMessages(chatID, msgs, err) })
	return err
}

func (c *Client) MarkReadForSender(batch []models.Notification) {
	c.update(func(s session.State) session.State { return s.MarkReadForSender(batch) })
}
