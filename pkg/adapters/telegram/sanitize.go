package telegram

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxMessageSize is the Telegram limit for one text message, in characters.
	DefaultMaxMessageSize = 4096
	// EnvMaxMessageSize overrides DefaultMaxMessageSize.
	EnvMaxMessageSize = "WEFT_MAX_MESSAGE_SIZE"
)

var (
	ErrMessageTooLarge = errors.New("message exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("message contains invalid UTF-8 sequences")
)

// SanitizeMessage enforces the size limit, validates UTF-8 and strips
// control characters other than newline, tab and carriage return.
func SanitizeMessage(msg string) (string, error) {
	if !utf8.ValidString(msg) {
		return "", ErrInvalidUTF8
	}
	limit := maxMessageSize()
	if n := utf8.RuneCountInString(msg); n > limit {
		// Rejected rather than truncated so the chat never sees half a message.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrMessageTooLarge, n, limit)
	}

	clean := true
	for _, r := range msg {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return msg, nil
	}

	var b strings.Builder
	b.Grow(len(msg))
	for _, r := range msg {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxMessageSize() int {
	if val := os.Getenv(EnvMaxMessageSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxMessageSize
}
