package domain

import "strings"

// MessageName names an operator-overridable canned message
type MessageName string

const (
	MessageStart MessageName = "start"
	MessageHelp  MessageName = "help"
)

// ParseMessageName normalizes name and checks it against the closed set
func ParseMessageName(name string) (MessageName, error) {
	switch n := MessageName(strings.ToLower(strings.TrimSpace(name))); n {
	case MessageStart, MessageHelp:
		return n, nil
	}
	return "", ErrUnknownMessageName
}
