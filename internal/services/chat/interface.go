package chat

// ActiveRoomTracker is told which room is on screen so its unread count can be
// suppressed. The Notification Center implements it.
type ActiveRoomTracker interface {
	// EnterChatroom registers a screen showing roomID; leave unregisters it.
	EnterChatroom(roomID int64) (leave func())
}
