package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Timer bounds in minutes. 0 disables auto-delete, the maximum is 7 days.
const (
	MinTimerMinutes = 0
	MaxTimerMinutes = 7 * 24 * 60
)

// SessionIDLength is the number of hex characters kept from a random UUID
const SessionIDLength = 10

// DeepLinkParam is the query parameter carrying the session id in a deep link
const DeepLinkParam = "start"

// ContentKind is the kind of a stored content item
type ContentKind string

const (
	KindPhoto    ContentKind = "photo"
	KindVideo    ContentKind = "video"
	KindDocument ContentKind = "document"
	KindText     ContentKind = "text"
)

// Valid reports whether k is one of the known kinds
func (k ContentKind) Valid() bool {
	switch k {
	case KindPhoto, KindVideo, KindDocument, KindText:
		return true
	}
	return false
}

// Session represents an authored, shareable bundle
type Session struct {
	ID           string
	OwnerID      string
	Protect      bool
	TimerMinutes int
	CreatedAt    time.Time
}

// ContentItem is one piece of content inside a session.
// Position is zero-based and reproduces authoring order.
type ContentItem struct {
	SessionID  string
	Position   int
	Kind       ContentKind
	PayloadRef string // opaque, resolved only by the transport
	Caption    string
}

// SessionSummary is a session row with its item count, used for listings
type SessionSummary struct {
	Session
	ItemCount int
}

// IsOwner reports whether userID authored the session
func (s *Session) IsOwner(userID string) bool {
	return s.OwnerID == userID
}

// ProtectFor returns the protect flag to apply for a delivery to requesterID.
// The owner always receives unprotected copies.
func (s *Session) ProtectFor(requesterID string) bool {
	return s.Protect && !s.IsOwner(requesterID)
}

// DeleteAfter returns how long after delivery the copies sent to requesterID
// should be deleted. Zero means never.
func (s *Session) DeleteAfter(requesterID string) time.Duration {
	if s.TimerMinutes <= 0 || s.IsOwner(requesterID) {
		return 0
	}
	return time.Duration(s.TimerMinutes) * time.Minute
}

// NewSessionID generates a short URL-safe session id
func NewSessionID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:SessionIDLength]
}

// BuildDeepLink adds the session id to base as the start query parameter,
// keeping any query parameters base already carries
func BuildDeepLink(base, sessionID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + DeepLinkParam + "=" + url.QueryEscape(sessionID)
	}
	q := u.Query()
	q.Set(DeepLinkParam, sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

// SessionIDFromArg extracts a session id from a /start argument, which is
// either the bare id or a full deep link
func SessionIDFromArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if !strings.Contains(arg, "://") {
		return arg
	}
	u, err := url.Parse(arg)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(DeepLinkParam))
}
