package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
)

// Mock implementations

type mockSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	items     map[string][]domain.ContentItem
	conflicts int // number of Create calls to reject with ErrSessionIDConflict
	createErr error
	creates   int
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		sessions: make(map[string]*domain.Session),
		items:    make(map[string][]domain.ContentItem),
	}
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.Session, items []domain.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrSessionIDConflict
	}
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.sessions[session.ID]; ok {
		return domain.ErrSessionIDConflict
	}
	m.sessions[session.ID] = session
	m.items[session.ID] = items
	return nil
}

func (m *mockSessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, []domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	return s, m.items[sessionID], nil
}

func (m *mockSessionRepo) ListRecent(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	return nil, nil
}

func (m *mockSessionRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

func (m *mockSessionRepo) put(session *domain.Session, items ...domain.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	m.items[session.ID] = items
}

type mockUserRepo struct {
	mu        sync.Mutex
	ids       []string
	registers int
}

func (m *mockUserRepo) Register(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registers++
	for _, id := range m.ids {
		if id == userID {
			return nil
		}
	}
	m.ids = append(m.ids, userID)
	return nil
}

func (m *mockUserRepo) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...), nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids), nil
}

type mockCannedRepo struct {
	values map[domain.MessageName]string
	err    error
}

func (m *mockCannedRepo) Set(ctx context.Context, name domain.MessageName, content string) error {
	if m.err != nil {
		return m.err
	}
	m.values[name] = content
	return nil
}

func (m *mockCannedRepo) Get(ctx context.Context, name domain.MessageName) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[name]
	return v, ok, nil
}

var errSendFailed = errors.New("send failed")

// mockSender records every message and hands out sequential message ids.
// failAt lists zero-based call indexes that fail.
type mockSender struct {
	mu     sync.Mutex
	sent   []domain.OutboundMessage
	calls  int
	failAt map[int]bool
}

func (m *mockSender) Send(ctx context.Context, msg domain.OutboundMessage) (domain.SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if m.failAt[call] {
		return domain.SentMessage{}, errSendFailed
	}
	m.sent = append(m.sent, msg)
	return domain.SentMessage{ChatID: "chat-" + msg.Recipient, MessageID: fmt.Sprintf("om_%d", call)}, nil
}

type scheduledJob struct {
	ref    domain.SentMessage
	fireAt time.Time
}

type mockScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (m *mockScheduler) Schedule(ref domain.SentMessage, fireAt time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, scheduledJob{ref: ref, fireAt: fireAt})
	return fmt.Sprintf("job-%d", len(m.jobs))
}
