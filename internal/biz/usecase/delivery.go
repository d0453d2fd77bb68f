package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/metrics"
)

// emptyTextPlaceholder is sent for text items without content
const emptyTextPlaceholder = "[Text]"

// DeletionScheduler schedules deletion of a delivered message
type DeletionScheduler interface {
	// Schedule deletes ref at fireAt and returns the job id
	Schedule(ref domain.SentMessage, fireAt time.Time) string
}

// DeliveryUsecase resolves deep links and sends session bundles
type DeliveryUsecase struct {
	sessionRepo repo.SessionRepo
	sender      repo.MessageSender
	scheduler   DeletionScheduler

	now func() time.Time
	log zerolog.Logger
}

// NewDeliveryUsecase creates a new delivery usecase
func NewDeliveryUsecase(sessionRepo repo.SessionRepo, sender repo.MessageSender, scheduler DeletionScheduler) *DeliveryUsecase {
	return &DeliveryUsecase{
		sessionRepo: sessionRepo,
		sender:      sender,
		scheduler:   scheduler,
		now:         time.Now,
		log:         logging.Logger("delivery"),
	}
}

// ItemFailure records an item that could not be sent
type ItemFailure struct {
	Position int
	Kind     domain.ContentKind
	Err      error
}

// DeliveryResult describes one delivery of a session bundle
type DeliveryResult struct {
	Session      *domain.Session
	Sent         []domain.SentMessage
	Failures     []ItemFailure
	DeletionJobs []string
	DeleteAt     time.Time // zero when nothing was scheduled
}

// Deliver sends every item of sessionID to requesterID in stored order.
// A missing or empty session returns domain.ErrNotFound before any send.
// Failed sends are collected in the result and do not stop the remaining items.
func (uc *DeliveryUsecase) Deliver(ctx context.Context, requesterID, sessionID string) (*DeliveryResult, error) {
	session, items, err := uc.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.Deliveries.WithLabelValues(metrics.ResultNotFound).Inc()
			return nil, domain.ErrNotFound
		}
		metrics.Deliveries.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(items) == 0 {
		metrics.Deliveries.WithLabelValues(metrics.ResultNotFound).Inc()
		return nil, domain.ErrNotFound
	}

	protect := session.ProtectFor(requesterID)
	result := &DeliveryResult{Session: session}

	for _, item := range items {
		msg := domain.ItemMessage(requesterID, item, protect)
		if msg.Kind == domain.KindText && msg.Caption == "" {
			msg.Caption = emptyTextPlaceholder
		}

		ref, err := uc.sender.Send(ctx, msg)
		if err != nil {
			metrics.ItemsSent.WithLabelValues(string(item.Kind), metrics.ResultError).Inc()
			uc.log.Warn().Err(err).
				Str("session_id", session.ID).
				Int("position", item.Position).
				Str("kind", string(item.Kind)).
				Msg("item send failed")
			result.Failures = append(result.Failures, ItemFailure{Position: item.Position, Kind: item.Kind, Err: err})
			continue
		}
		metrics.ItemsSent.WithLabelValues(string(item.Kind), metrics.ResultOK).Inc()
		result.Sent = append(result.Sent, ref)
	}

	if after := session.DeleteAfter(requesterID); after > 0 && len(result.Sent) > 0 {
		result.DeleteAt = uc.now().Add(after)
		for _, ref := range result.Sent {
			result.DeletionJobs = append(result.DeletionJobs, uc.scheduler.Schedule(ref, result.DeleteAt))
		}
	}

	metrics.Deliveries.WithLabelValues(metrics.ResultOK).Inc()
	uc.log.Info().
		Str("session_id", session.ID).
		Str("requester", requesterID).
		Int("sent", len(result.Sent)).
		Int("failed", len(result.Failures)).
		Int("deletions", len(result.DeletionJobs)).
		Msg("bundle delivered")

	return result, nil
}
