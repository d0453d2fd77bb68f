package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/metrics"
)

// BroadcastUsecase sends an operator message to every registered user
type BroadcastUsecase struct {
	operator domain.Operator
	userRepo repo.UserRepo
	sender   repo.MessageSender
	limiter  *rate.Limiter // nil means unpaced
	log      zerolog.Logger
}

// NewBroadcastUsecase creates a new broadcast usecase.
// perSecond paces sends; zero or less disables pacing.
func NewBroadcastUsecase(operator domain.Operator, userRepo repo.UserRepo, sender repo.MessageSender, perSecond float64) *BroadcastUsecase {
	var limiter *rate.Limiter
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return &BroadcastUsecase{
		operator: operator,
		userRepo: userRepo,
		sender:   sender,
		limiter:  limiter,
		log:      logging.Logger("broadcast"),
	}
}

// BroadcastReport summarizes a broadcast. Per-recipient errors are not surfaced.
type BroadcastReport struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Broadcast sends text to every registered user. A failed recipient is
// skipped; a cancelled context stops the fan-out and counts the rest as skipped.
func (uc *BroadcastUsecase) Broadcast(ctx context.Context, senderID, text string) (*BroadcastReport, error) {
	if err := uc.operator.Authorize(senderID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}

	userIDs, err := uc.userRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	report := &BroadcastReport{Recipients: len(userIDs)}
	for i, userID := range userIDs {
		if uc.limiter != nil {
			if err := uc.limiter.Wait(ctx); err != nil {
				report.Skipped = len(userIDs) - i
				metrics.BroadcastSends.WithLabelValues(metrics.ResultSkipped).Add(float64(report.Skipped))
				uc.log.Warn().Err(err).Int("skipped", report.Skipped).Msg("broadcast interrupted")
				break
			}
		}

		if _, err := uc.sender.Send(ctx, domain.TextMessage(userID, text)); err != nil {
			report.Failed++
			metrics.BroadcastSends.WithLabelValues(metrics.ResultError).Inc()
			uc.log.Debug().Err(err).Str("recipient", userID).Msg("broadcast send failed")
			continue
		}
		report.Delivered++
		metrics.BroadcastSends.WithLabelValues(metrics.ResultOK).Inc()
	}

	uc.log.Info().
		Int("recipients", report.Recipients).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("broadcast finished")
	return report, nil
}
