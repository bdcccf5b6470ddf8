package chathub

import (
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/models"
	"context"
	"time"

	"go.uber.org/zap"
)

const presenceWriteTimeout = 2 * time.Second

// publishPresence hands the newest online set to the mirror goroutine.
// Only the latest set is kept when the mirror falls behind.
func (m *ManagerService) publishPresence(online []models.OnlineUser) {
	if m.Presence == nil {
		return
	}

	ids := make([]string, len(online))
	for i, u := range online {
		ids[i] = u.UserID
	}

	for {
		select {
		case m.presenceCh <- ids:
			return
		default:
		}
		// Discard the stale pending set and retry.
		select {
		case <-m.presenceCh:
		default:
		}
	}
}

func (m *ManagerService) runPresenceMirror(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// The hub is shutting down; nobody is online anymore.
			m.writePresence(context.Background(), nil)
			return
		case ids := <-m.presenceCh:
			m.writePresence(ctx, ids)
		}
	}
}

func (m *ManagerService) writePresence(parent context.Context, ids []string) {
	ctx, cancel := context.WithTimeout(parent, presenceWriteTimeout)
	defer cancel()

	if err := m.Presence.SetOnline(ctx, ids); err != nil {
		logger.Warn("presence mirror update failed", zap.Int("online", len(ids)), zap.Error(err))
	}
}
