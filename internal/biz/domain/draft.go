package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AuthoringStep names a state of the authoring flow
type AuthoringStep string

const (
	StepIdle            AuthoringStep = "idle"
	StepCollecting      AuthoringStep = "collecting"
	StepAwaitingProtect AuthoringStep = "awaiting_protect"
	StepAwaitingTimer   AuthoringStep = "awaiting_timer"
	StepCommitted       AuthoringStep = "committed"
	StepCancelled       AuthoringStep = "cancelled"
)

// DraftState is one state of the authoring flow.
// Each implementation only carries the data that is valid in that state.
type DraftState interface {
	Step() AuthoringStep
}

// DraftItem is a content submission collected before commit
type DraftItem struct {
	Kind       ContentKind
	PayloadRef string
	Caption    string
}

// Idle is the state before authoring starts
type Idle struct{}

func (Idle) Step() AuthoringStep { return StepIdle }

// Collecting accepts content submissions until done
type Collecting struct {
	items []DraftItem
}

// StartDraft begins a new, empty draft
func StartDraft() Collecting {
	return Collecting{}
}

func (Collecting) Step() AuthoringStep { return StepCollecting }

// Items returns the collected items in submission order
func (c Collecting) Items() []DraftItem {
	return cloneItems(c.items)
}

// Add appends submissions and returns the new state. One invalid item rejects them all.
func (c Collecting) Add(items ...DraftItem) (Collecting, error) {
	for _, item := range items {
		if !item.Kind.Valid() {
			return c, fmt.Errorf("%w: unsupported content kind %q", ErrValidation, item.Kind)
		}
		if item.Kind != KindText && item.PayloadRef == "" {
			return c, fmt.Errorf("%w: %s without payload", ErrValidation, item.Kind)
		}
	}
	return Collecting{items: append(cloneItems(c.items), items...)}, nil
}

// Done closes collection. Zero items are allowed here.
func (c Collecting) Done() AwaitingProtect {
	return AwaitingProtect{items: c.items}
}

// AwaitingProtect waits for the on/off protect choice
type AwaitingProtect struct {
	items []DraftItem
}

func (AwaitingProtect) Step() AuthoringStep { return StepAwaitingProtect }

// ItemCount returns the number of collected items
func (a AwaitingProtect) ItemCount() int { return len(a.items) }

// Choose applies the protect input. Invalid input leaves the state as is.
func (a AwaitingProtect) Choose(input string) (AwaitingTimer, error) {
	protect, err := ParseProtect(input)
	if err != nil {
		return AwaitingTimer{}, err
	}
	return AwaitingTimer{items: a.items, protect: protect}, nil
}

// AwaitingTimer waits for the auto-delete timer in minutes
type AwaitingTimer struct {
	items   []DraftItem
	protect bool
}

func (AwaitingTimer) Step() AuthoringStep { return StepAwaitingTimer }

// Protect returns the chosen protect flag
func (a AwaitingTimer) Protect() bool { return a.protect }

// Choose applies the timer input. Invalid input leaves the state as is.
func (a AwaitingTimer) Choose(input string) (Committed, error) {
	minutes, err := ParseTimer(input)
	if err != nil {
		return Committed{}, err
	}
	return Committed{items: a.items, protect: a.protect, timerMinutes: minutes}, nil
}

// Committed holds a complete draft ready to be persisted
type Committed struct {
	items        []DraftItem
	protect      bool
	timerMinutes int
}

func (Committed) Step() AuthoringStep { return StepCommitted }

// Protect returns the chosen protect flag
func (c Committed) Protect() bool { return c.protect }

// TimerMinutes returns the chosen timer
func (c Committed) TimerMinutes() int { return c.timerMinutes }

// ItemCount returns the number of collected items
func (c Committed) ItemCount() int { return len(c.items) }

// Build materializes the session row and its items for sessionID
func (c Committed) Build(sessionID, ownerID string, now time.Time) (*Session, []ContentItem) {
	session := &Session{
		ID:           sessionID,
		OwnerID:      ownerID,
		Protect:      c.protect,
		TimerMinutes: c.timerMinutes,
		CreatedAt:    now,
	}
	items := make([]ContentItem, len(c.items))
	for i, it := range c.items {
		items[i] = ContentItem{
			SessionID:  sessionID,
			Position:   i,
			Kind:       it.Kind,
			PayloadRef: it.PayloadRef,
			Caption:    it.Caption,
		}
	}
	return session, items
}

// Cancelled is the terminal state of an abandoned draft
type Cancelled struct{}

func (Cancelled) Step() AuthoringStep { return StepCancelled }

// IsActive reports whether state is a non-terminal authoring state
func IsActive(state DraftState) bool {
	switch state.(type) {
	case Collecting, AwaitingProtect, AwaitingTimer:
		return true
	}
	return false
}

// ParseProtect parses an on/off style answer
func ParseProtect(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "on", "yes", "true":
		return true, nil
	case "off", "no", "false":
		return false, nil
	}
	return false, ErrInvalidProtect
}

// ParseTimer parses the auto-delete timer in whole minutes
func ParseTimer(input string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || minutes < MinTimerMinutes || minutes > MaxTimerMinutes {
		return 0, ErrInvalidTimer
	}
	return minutes, nil
}

func cloneItems(items []DraftItem) []DraftItem {
	out := make([]DraftItem, len(items), len(items)+1)
	copy(out, items)
	return out
}
