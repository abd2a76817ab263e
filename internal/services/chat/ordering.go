package chat

import (
	"sort"

	"github.com/trash2cash/chatsync/internal/domain"
)

// SortChatrooms orders rooms by last message time, newest first. Rooms
// without messages go last. Ties keep their server order.
func SortChatrooms(rooms []domain.Chatroom) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i].LastMessage, rooms[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Timestamp.After(b.Timestamp)
		}
	})
}

// SortMessages orders messages oldest first, by id within the same instant.
func SortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// SelectInitial picks the room to open: the deep-linked one if the user has
// it, else the most recent, else none.
func SelectInitial(rooms []domain.Chatroom, deepLink *int64) (int64, bool) {
	if deepLink != nil {
		for _, r := range rooms {
			if r.ID == *deepLink {
				return r.ID, true
			}
		}
	}
	if len(rooms) > 0 {
		return rooms[0].ID, true
	}
	return 0, false
}
