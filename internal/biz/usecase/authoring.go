package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/metrics"
)

// maxIDAttempts bounds how many fresh session ids a commit tries on conflict
const maxIDAttempts = 5

// AuthoringUsecase drives the operator through assembling a session.
// Drafts are in memory, one per operator; only the commit touches the store.
type AuthoringUsecase struct {
	operator     domain.Operator
	sessionRepo  repo.SessionRepo
	deepLinkBase string

	newID func() string
	now   func() time.Time
	log   zerolog.Logger

	mu     sync.Mutex
	drafts map[string]domain.DraftState
}

// NewAuthoringUsecase creates a new authoring usecase
func NewAuthoringUsecase(operator domain.Operator, sessionRepo repo.SessionRepo, deepLinkBase string) *AuthoringUsecase {
	return &AuthoringUsecase{
		operator:     operator,
		sessionRepo:  sessionRepo,
		deepLinkBase: deepLinkBase,
		newID:        domain.NewSessionID,
		now:          time.Now,
		log:          logging.Logger("authoring"),
		drafts:       make(map[string]domain.DraftState),
	}
}

// CommitResult is returned when a draft is persisted
type CommitResult struct {
	Session  *domain.Session
	Items    []domain.ContentItem
	DeepLink string
}

// Start begins a new draft for callerID, discarding any unfinished one
func (uc *AuthoringUsecase) Start(callerID string) error {
	if err := uc.operator.Authorize(callerID); err != nil {
		return err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if prev, ok := uc.drafts[callerID]; ok {
		uc.log.Info().Str("step", string(prev.Step())).Msg("discarding unfinished draft")
	}
	uc.drafts[callerID] = domain.StartDraft()
	return nil
}

// State returns the current draft state of callerID
func (uc *AuthoringUsecase) State(callerID string) domain.DraftState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if state, ok := uc.drafts[callerID]; ok {
		return state
	}
	return domain.Idle{}
}

// Active reports whether callerID has an unfinished draft
func (uc *AuthoringUsecase) Active(callerID string) bool {
	return domain.IsActive(uc.State(callerID))
}

// AddItem appends a content submission and returns the number of collected items
func (uc *AuthoringUsecase) AddItem(callerID string, item domain.DraftItem) (int, error) {
	return uc.AddItems(callerID, item)
}

// AddItems appends all items or none of them
func (uc *AuthoringUsecase) AddItems(callerID string, items ...domain.DraftItem) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	collecting, err := stateAs[domain.Collecting](uc.drafts, callerID)
	if err != nil {
		return 0, err
	}
	next, err := collecting.Add(items...)
	if err != nil {
		return 0, err
	}
	uc.drafts[callerID] = next
	return len(next.Items()), nil
}

// Done closes collection and returns the number of collected items
func (uc *AuthoringUsecase) Done(callerID string) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	collecting, err := stateAs[domain.Collecting](uc.drafts, callerID)
	if err != nil {
		return 0, err
	}
	next := collecting.Done()
	uc.drafts[callerID] = next
	return next.ItemCount(), nil
}

// ChooseProtect applies the protect answer. Validation errors keep the step.
func (uc *AuthoringUsecase) ChooseProtect(callerID, input string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	awaiting, err := stateAs[domain.AwaitingProtect](uc.drafts, callerID)
	if err != nil {
		return err
	}
	next, err := awaiting.Choose(input)
	if err != nil {
		return err
	}
	uc.drafts[callerID] = next
	return nil
}

// ChooseTimer applies the timer answer and commits the draft.
// Validation errors keep the step; a failed commit leaves the draft waiting
// for the timer so the operator can resend it.
func (uc *AuthoringUsecase) ChooseTimer(ctx context.Context, callerID, input string) (*CommitResult, error) {
	uc.mu.Lock()
	awaiting, err := stateAs[domain.AwaitingTimer](uc.drafts, callerID)
	if err != nil {
		uc.mu.Unlock()
		return nil, err
	}
	committed, err := awaiting.Choose(input)
	if err != nil {
		uc.mu.Unlock()
		return nil, err
	}
	delete(uc.drafts, callerID)
	uc.mu.Unlock()

	result, err := uc.commit(ctx, callerID, committed)
	if err != nil {
		uc.mu.Lock()
		if _, exists := uc.drafts[callerID]; !exists {
			uc.drafts[callerID] = awaiting
		}
		uc.mu.Unlock()
		return nil, err
	}
	return result, nil
}

// Cancel discards the draft of callerID without persisting anything
func (uc *AuthoringUsecase) Cancel(callerID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	state, ok := uc.drafts[callerID]
	if !ok || !domain.IsActive(state) {
		return domain.ErrNoDraft
	}
	delete(uc.drafts, callerID)
	uc.log.Info().Str("step", string(state.Step())).Msg("draft cancelled")
	return nil
}

func (uc *AuthoringUsecase) commit(ctx context.Context, ownerID string, draft domain.Committed) (*CommitResult, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		session, items := draft.Build(uc.newID(), ownerID, uc.now())

		err := uc.sessionRepo.Create(ctx, session, items)
		if errors.Is(err, domain.ErrSessionIDConflict) {
			uc.log.Warn().Str("session_id", session.ID).Int("attempt", attempt).Msg("session id collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}

		metrics.SessionsCommitted.Inc()
		uc.log.Info().
			Str("session_id", session.ID).
			Int("items", len(items)).
			Bool("protect", session.Protect).
			Int("timer_minutes", session.TimerMinutes).
			Msg("session committed")

		return &CommitResult{
			Session:  session,
			Items:    items,
			DeepLink: domain.BuildDeepLink(uc.deepLinkBase, session.ID),
		}, nil
	}
	return nil, fmt.Errorf("create session: %w after %d attempts", domain.ErrSessionIDConflict, maxIDAttempts)
}

// stateAs returns the draft of callerID as S, or the error describing why it is not.
// Callers must hold the mutex guarding drafts.
func stateAs[S domain.DraftState](drafts map[string]domain.DraftState, callerID string) (S, error) {
	var zero S
	state, ok := drafts[callerID]
	if !ok {
		return zero, domain.ErrNoDraft
	}
	s, ok := state.(S)
	if !ok {
		return zero, fmt.Errorf("%w: draft is %s", domain.ErrOutOfStep, state.Step())
	}
	return s, nil
}
