package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/metrics"
)

// DeletionScheduler deletes delivered messages once their timer runs out.
// Jobs live in memory only and are dropped on Stop.
type DeletionScheduler struct {
	deleter repo.MessageDeleter
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*deletionJob
	stopped bool
	wg      sync.WaitGroup // in-flight deletes
}

type deletionJob struct {
	ref    domain.SentMessage
	fireAt time.Time
	timer  *time.Timer
}

// NewDeletionScheduler creates a new deletion scheduler. Each delete call is
// bounded by timeout.
func NewDeletionScheduler(deleter repo.MessageDeleter, timeout time.Duration) *DeletionScheduler {
	return &DeletionScheduler{
		deleter: deleter,
		timeout: timeout,
		now:     time.Now,
		log:     logging.Logger("deletion"),
		jobs:    make(map[string]*deletionJob),
	}
}

// Schedule deletes ref at fireAt and returns the job id.
// ref is copied into the job; later changes by the caller do not affect it.
func (s *DeletionScheduler) Schedule(ref domain.SentMessage, fireAt time.Time) string {
	jobID := uuid.NewString()
	delay := fireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.log.Warn().Str("message_id", ref.MessageID).Msg("scheduler stopped, deletion not scheduled")
		return jobID
	}

	job := &deletionJob{ref: ref, fireAt: fireAt}
	job.timer = time.AfterFunc(delay, func() { s.fire(jobID) })
	s.jobs[jobID] = job

	metrics.DeletionsScheduled.Inc()
	metrics.DeletionsPending.Inc()
	s.log.Debug().
		Str("job_id", jobID).
		Str("message_id", ref.MessageID).
		Time("fire_at", fireAt).
		Msg("deletion scheduled")
	return jobID
}

// Revoke cancels a job that has not fired yet
func (s *DeletionScheduler) Revoke(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	job.timer.Stop()
	delete(s.jobs, jobID)
	metrics.DeletionsPending.Dec()
	return true
}

// Pending returns the number of jobs waiting to fire
func (s *DeletionScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop drops all unfired jobs and waits for in-flight deletes
func (s *DeletionScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	dropped := len(s.jobs)
	for id, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, id)
	}
	metrics.DeletionsPending.Sub(float64(dropped))
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Int("dropped", dropped).Msg("deletion scheduler stopped")
}

func (s *DeletionScheduler) fire(jobID string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, jobID)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	metrics.DeletionsPending.Dec()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.deleter.Delete(ctx, job.ref); err != nil {
		metrics.Deletions.WithLabelValues(metrics.ResultError).Inc()
		s.log.Debug().Err(err).
			Str("job_id", jobID).
			Str("message_id", job.ref.MessageID).
			Msg("deletion failed")
		return
	}
	metrics.Deletions.WithLabelValues(metrics.ResultOK).Inc()
	s.log.Debug().Str("job_id", jobID).Str("message_id", job.ref.MessageID).Msg("message deleted")
}
