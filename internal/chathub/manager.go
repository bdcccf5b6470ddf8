// Package chathub tracks live connections per user and relays messages between them.
package chathub

import (
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/models"
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PresenceMirror receives every new online set. Errors are logged only.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userIDs []string) error
}

// Registration binds a user identity to a connection.
type Registration struct {
	UserID string
	Client Client
}

// ManagerService is the connection registry and message relay.
// Mutations and relays are applied by the single Run goroutine in arrival order;
// the online-set broadcast caused by a mutation is queued to every connection
// before the next request is taken.
type ManagerService struct {
	mu     sync.RWMutex
	conns  map[Client]struct{}
	online map[string]Client
	// retired holds clients the hub closed on its own until their Unregister arrives.
	retired map[Client]struct{}

	// Channels
	ConnectCh    chan Client
	RegisterCh   chan Registration
	UnregisterCh chan Client
	IncomingCh   chan models.RelayMessage

	Presence   PresenceMirror
	presenceCh chan []string

	now  func() time.Time
	done chan struct{}
}

// NewManagerService creates an idle hub; start it with Run.
func NewManagerService(presence PresenceMirror) *ManagerService {
	return &ManagerService{
		conns:        make(map[Client]struct{}),
		online:       make(map[string]Client),
		retired:      make(map[Client]struct{}),
		ConnectCh:    make(chan Client),
		RegisterCh:   make(chan Registration),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan models.RelayMessage),
		Presence:     presence,
		presenceCh:   make(chan []string, 1),
		now:          func() time.Time { return time.Now().UTC() },
		done:         make(chan struct{}),
	}
}

// Run processes hub requests until ctx is cancelled, then closes every connection.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	if m.Presence != nil {
		go m.runPresenceMirror(ctx)
	}
	logger.Info("chat hub started")

	for {
		select {
		case <-ctx.Done():
			m.shutdownClients()
			logger.Info("chat hub stopped")
			return

		case client := <-m.ConnectCh:
			m.handleConnect(client)

		case reg := <-m.RegisterCh:
			m.handleRegister(reg)

		case client := <-m.UnregisterCh:
			m.handleUnregister(client)

		case msg := <-m.IncomingCh:
			m.handleRelay(msg)
		}
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Connect attaches a fresh connection so it receives online-set broadcasts.
// It returns false when the hub has stopped.
func (m *ManagerService) Connect(client Client) bool {
	select {
	case m.ConnectCh <- client:
		return true
	case <-m.done:
		return false
	}
}

// Register binds userID to client. A later registration of the same user from
// another connection replaces the binding.
func (m *ManagerService) Register(userID string, client Client) bool {
	select {
	case m.RegisterCh <- Registration{UserID: userID, Client: client}:
		return true
	case <-m.done:
		return false
	}
}

// Unregister forgets client and whatever identity it was bound to.
// Unknown clients are ignored.
func (m *ManagerService) Unregister(client Client) bool {
	select {
	case m.UnregisterCh <- client:
		return true
	case <-m.done:
		return false
	}
}

// Relay forwards msg to recipientID if that user is connected and drops it otherwise.
func (m *ManagerService) Relay(msg models.RelayMessage, recipientID string) bool {
	msg.RecipientID = recipientID
	select {
	case m.IncomingCh <- msg:
		return true
	case <-m.done:
		return false
	}
}

// IsOnline reports whether userID has a registered connection.
func (m *ManagerService) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.online[userID]
	return ok
}

// OnlineUsers returns the online set sorted by user id.
func (m *ManagerService) OnlineUsers() []models.OnlineUser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.onlineLocked()
}

// OnlineUserIDs returns the ids of the online set, sorted.
func (m *ManagerService) OnlineUserIDs() []string {
	users := m.OnlineUsers()
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
	}
	return ids
}

// ConnectionCount returns the number of attached connections, registered or not.
func (m *ManagerService) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

func (m *ManagerService) onlineLocked() []models.OnlineUser {
	users := make([]models.OnlineUser, 0, len(m.online))
	for userID, client := range m.online {
		users = append(users, models.OnlineUser{UserID: userID, SocketID: client.GetConnID()})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

func (m *ManagerService) handleConnect(client Client) {
	if client == nil {
		logger.Warn("nil client connect; skipping")
		return
	}

	m.mu.Lock()
	if _, ok := m.retired[client]; ok {
		m.mu.Unlock()
		return
	}
	m.conns[client] = struct{}{}
	count := len(m.conns)
	online := m.onlineLocked()
	m.mu.Unlock()

	logger.Debug("connection attached", zap.String("conn", client.GetConnID()), zap.Int("connections", count))

	// A new connection learns the current set right away.
	m.sendOrDrop([]Client{client}, models.EventGetOnlineUsers, online)
}

func (m *ManagerService) handleRegister(reg Registration) {
	if reg.Client == nil || reg.UserID == "" {
		logger.Warn("ignoring registration without user id or client")
		return
	}

	m.mu.Lock()
	if _, ok := m.retired[reg.Client]; ok {
		m.mu.Unlock()
		return
	}
	m.conns[reg.Client] = struct{}{}
	if prevID := reg.Client.GetUserID(); prevID != "" && prevID != reg.UserID && m.online[prevID] == reg.Client {
		delete(m.online, prevID)
	}
	replaced, hadPrev := m.online[reg.UserID]
	m.online[reg.UserID] = reg.Client
	reg.Client.SetUserID(reg.UserID)
	m.mu.Unlock()

	if hadPrev && replaced != reg.Client {
		logger.Info("user re-registered from a new connection",
			zap.String("user", reg.UserID),
			zap.String("old_conn", replaced.GetConnID()),
			zap.String("conn", reg.Client.GetConnID()))
	} else {
		logger.Info("user online", zap.String("user", reg.UserID), zap.String("conn", reg.Client.GetConnID()))
	}

	m.broadcastOnline()
}

func (m *ManagerService) handleUnregister(client Client) {
	if client == nil {
		return
	}

	m.mu.Lock()
	if _, ok := m.retired[client]; ok {
		delete(m.retired, client)
		m.mu.Unlock()
		return
	}
	if _, ok := m.conns[client]; !ok {
		m.mu.Unlock()
		return
	}
	changed := m.forgetLocked(client)
	m.mu.Unlock()

	client.Close()
	logger.Debug("connection detached", zap.String("conn", client.GetConnID()), zap.String("user", client.GetUserID()))

	if changed {
		m.broadcastOnline()
	}
}

// forgetLocked removes client from the registry and reports whether the online set changed.
func (m *ManagerService) forgetLocked(client Client) bool {
	delete(m.conns, client)
	userID := client.GetUserID()
	if userID != "" && m.online[userID] == client {
		delete(m.online, userID)
		return true
	}
	return false
}

func (m *ManagerService) handleRelay(msg models.RelayMessage) {
	m.mu.RLock()
	target, ok := m.online[msg.RecipientID]
	m.mu.RUnlock()

	if !ok {
		logger.Debug("recipient offline; relay dropped",
			zap.String("recipient", msg.RecipientID),
			zap.String("chat", msg.ChatID))
		return
	}

	date := msg.CreatedAt
	if date.IsZero() {
		date = m.now()
	}
	notification := models.Notification{
		SenderID: msg.SenderID,
		ChatID:   msg.ChatID,
		IsRead:   false,
		Date:     date,
	}

	if m.sendOrDrop([]Client{target}, models.EventGetMessage, msg) {
		m.sendOrDrop([]Client{target}, models.EventGetNotification, notification)
	}
}

// broadcastOnline queues the online set to every connection. Connections that
// cannot take it are dropped, which may change the set again.
func (m *ManagerService) broadcastOnline() {
	for {
		m.mu.RLock()
		online := m.onlineLocked()
		targets := make([]Client, 0, len(m.conns))
		for c := range m.conns {
			targets = append(targets, c)
		}
		m.mu.RUnlock()

		m.publishPresence(online)

		ev, err := models.NewEvent(models.EventGetOnlineUsers, online)
		if err != nil {
			logger.Error("encode online set", zap.Error(err))
			return
		}
		if failed := m.deliver(targets, ev); !m.dropClients(failed) {
			return
		}
	}
}

// sendOrDrop encodes one event for targets and drops the ones with a full buffer.
// It returns false when any target was dropped.
func (m *ManagerService) sendOrDrop(targets []Client, name string, data any) bool {
	ev, err := models.NewEvent(name, data)
	if err != nil {
		logger.Error("encode event", zap.String("event", name), zap.Error(err))
		return false
	}
	failed := m.deliver(targets, ev)
	if len(failed) == 0 {
		return true
	}
	if m.dropClients(failed) {
		m.broadcastOnline()
	}
	return false
}

func (m *ManagerService) deliver(targets []Client, ev models.Event) []Client {
	var failed []Client
	for _, c := range targets {
		select {
		case c.GetSendChannel() <- ev:
		default:
			failed = append(failed, c)
		}
	}
	return failed
}

// dropClients removes slow clients and reports whether the online set changed.
func (m *ManagerService) dropClients(clients []Client) bool {
	if len(clients) == 0 {
		return false
	}

	changed := false
	var toClose []Client
	m.mu.Lock()
	for _, c := range clients {
		if _, ok := m.conns[c]; !ok {
			continue
		}
		if m.forgetLocked(c) {
			changed = true
		}
		m.retired[c] = struct{}{}
		toClose = append(toClose, c)
	}
	m.mu.Unlock()

	for _, c := range toClose {
		logger.Warn("send buffer full; dropping connection", zap.String("conn", c.GetConnID()), zap.String("user", c.GetUserID()))
		c.Close()
	}
	return changed
}

func (m *ManagerService) shutdownClients() {
	m.mu.Lock()
	clients := make([]Client, 0, len(m.conns))
	for c := range m.conns {
		clients = append(clients, c)
	}
	m.conns = make(map[Client]struct{})
	m.online = make(map[string]Client)
	m.retired = make(map[Client]struct{})
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	logger.Info("closed client connections", zap.Int("count", len(clients)))
}
