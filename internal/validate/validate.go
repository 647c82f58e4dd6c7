// Package validate checks inbound chat bodies before any provider call.
package validate

import (
	"encoding/json"
	"errors"
	"unicode/utf16"
)

// MaxMessageLength is counted in UTF-16 code units, the unit browsers use
// for string length, so the limit matches what the chat input enforces.
const MaxMessageLength = 500

var (
	ErrInvalidInput = errors.New("message is missing or not a string")
	ErrTooLong      = errors.New("message exceeds maximum length")
)

// Message extracts the "message" field from a JSON body. The returned string
// is the raw value; it is not trimmed or otherwise rewritten.
func Message(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", ErrInvalidInput
	}

	raw, ok := fields["message"]
	if !ok {
		return "", ErrInvalidInput
	}

	// Unmarshalling null into a string is a no-op, so null ends up empty.
	var message string
	if err := json.Unmarshal(raw, &message); err != nil || message == "" {
		return "", ErrInvalidInput
	}

	if Length(message) > MaxMessageLength {
		return "", ErrTooLong
	}

	return message, nil
}

func Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
