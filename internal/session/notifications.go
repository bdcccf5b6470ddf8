package session

import "chatrelay/backend/internal/models"

// MarkAllRead returns a copy of list with every notification read.
func MarkAllRead(list []models.Notification) []models.Notification {
	out := make([]models.Notification, len(list))
	for i, n := range list {
		n.IsRead = true
		out[i] = n
	}
	return out
}

// MarkRead returns the chat pairing user with target's sender (nil when no chat
// does) and a copy of list with every notification from that sender read.
// The read-marking applies whether or not a chat was found.
func MarkRead(target models.Notification, chats []models.Chat, userID string, list []models.Notification) (*models.Chat, []models.Notification) {
	var open *models.Chat
	for i := range chats {
		if chats[i].Pairs(userID, target.SenderID) {
			chat := chats[i]
			open = &chat
			break
		}
	}
	return open, markSenderRead(target.SenderID, list)
}

// MarkReadForSender marks read the entries of list whose sender appears in batch.
// Other entries are copied unchanged; an empty batch changes nothing.
func MarkReadForSender(batch []models.Notification, list []models.Notification) []models.Notification {
	out := append([]models.Notification(nil), list...)
	if len(batch) == 0 {
		return out
	}

	senders := make(map[string]struct{}, len(batch))
	for _, n := range batch {
		senders[n.SenderID] = struct{}{}
	}
	for i := range out {
		if _, ok := senders[out[i].SenderID]; ok {
			out[i].IsRead = true
		}
	}
	return out
}

func markSenderRead(senderID string, list []models.Notification) []models.Notification {
	return MarkReadForSender([]models.Notification{{SenderID: senderID}}, list)
}
