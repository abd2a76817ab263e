package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/trash2cash/chatsync/internal/services/apiclient"
)

// ValidateContent trims content and checks it against the length limit. It
// returns the text to send or a VALIDATION error.
func ValidateContent(content string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", apiclient.NewValidationError("chat.send", "message cannot be empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > maxLength {
		return "", apiclient.NewValidationError("chat.send",
			fmt.Sprintf("message is %d characters, the limit is %d", n, maxLength))
	}
	return trimmed, nil
}

func errUnknownRoom(roomID int64) error {
	return apiclient.NewValidationError("chat.select", fmt.Sprintf("chatroom %d is not in your chat list", roomID))
}

func errNoRoomSelected() error {
	return apiclient.NewValidationError("chat.send", "no chatroom selected")
}
