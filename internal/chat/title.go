package chat

import (
	"strings"
	"unicode/utf8"
)

const (
	titleMaxWords = 5
	titleMaxRunes = 50
	titleEllipsis = "..."
)

// TitleFromMessage derives a conversation title from its first message.
//
// Messages with more than five words become their first five words followed by
// "...". Shorter messages are kept whole unless they exceed 50 characters, in
// which case the first 50 characters are kept and "..." appended.
func TitleFromMessage(message string) string {
	message = strings.TrimSpace(message)
	words := strings.Fields(message)
	if len(words) > titleMaxWords {
		return strings.Join(words[:titleMaxWords], " ") + titleEllipsis
	}
	if utf8.RuneCountInString(message) > titleMaxRunes {
		return string([]rune(message)[:titleMaxRunes]) + titleEllipsis
	}
	return message
}
