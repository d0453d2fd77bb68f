package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/feishu-vault/internal/biz"
	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/usecase"
	"github.com/devricklin/feishu-vault/internal/texts"
)

// Mock implementations

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	items    map[string][]domain.ContentItem
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.Session, items []domain.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type mockUserRepo struct {
	mu  sync.Mutex
	ids []string
}

func (m *mockUserRepo) Register(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	mu     sync.Mutex
	values map[domain.MessageName]string
}

func (m *mockCannedRepo) Set(ctx context.Context, name domain.MessageName, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = content
	return nil
}

func (m *mockCannedRepo) Get(ctx context.Context, name domain.MessageName) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok, nil
}

// mockSender records every outbound message
type mockSender struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
	fail map[string]bool // recipients whose sends fail
}

func (m *mockSender) Send(ctx context.Context, msg domain.OutboundMessage) (domain.SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.Recipient] {
		return domain.SentMessage{}, fmt.Errorf("send to %s failed", msg.Recipient)
	}
	m.sent = append(m.sent, msg)
	return domain.SentMessage{ChatID: "oc_" + msg.Recipient, MessageID: fmt.Sprintf("om_%d", len(m.sent))}, nil
}

// to returns the messages sent to recipient
func (m *mockSender) to(recipient string) []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutboundMessage
	for _, msg := range m.sent {
		if msg.Recipient == recipient {
			out = append(out, msg)
		}
	}
	return out
}

// lastText returns the last text sent to recipient
func (m *mockSender) lastText(recipient string) string {
	msgs := m.to(recipient)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == domain.KindText {
			return msgs[i].Caption
		}
	}
	return ""
}

type mockScheduler struct {
	mu   sync.Mutex
	refs []domain.SentMessage
}

func (m *mockScheduler) Schedule(ref domain.SentMessage, fireAt time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs = append(m.refs, ref)
	return fmt.Sprintf("job-%d", len(m.refs))
}

type mockIngester struct{}

func (mockIngester) Ingest(ctx context.Context, sourceMsgID, payloadRef string) (string, error) {
	if strings.HasPrefix(payloadRef, "bad") {
		return "", fmt.Errorf("cannot download %s", payloadRef)
	}
	return "hosted:" + payloadRef, nil
}

const (
	operatorID = "ou_operator"
	guestID    = "ou_guest"
	linkBase   = "https://applink.feishu.cn/client/bot/open?appId=cli_test"
)

type testEnv struct {
	svc       *CommandService
	sessions  *mockSessionRepo
	users     *mockUserRepo
	sender    *mockSender
	scheduler *mockScheduler
}

func newTestEnv() *testEnv {
	operator := domain.NewOperator(operatorID)
	env := &testEnv{
		sessions:  &mockSessionRepo{sessions: make(map[string]*domain.Session), items: make(map[string][]domain.ContentItem)},
		users:     &mockUserRepo{},
		sender:    &mockSender{},
		scheduler: &mockScheduler{},
	}
	uc := &biz.Usecases{
		Users:     usecase.NewUserUsecase(env.users),
		Authoring: usecase.NewAuthoringUsecase(operator, env.sessions, linkBase),
		Delivery:  usecase.NewDeliveryUsecase(env.sessions, env.sender, env.scheduler),
		Broadcast: usecase.NewBroadcastUsecase(operator, env.users, env.sender, 0),
		Messages:  usecase.NewCannedMessageUsecase(operator, &mockCannedRepo{values: make(map[domain.MessageName]string)}),
	}
	env.svc = NewCommandService(uc, env.sender, mockIngester{}, texts.Default())
	return env
}

func (e *testEnv) text(sender, text string) error {
	return e.svc.HandleMessage(context.Background(), &MessageRequest{SenderID: sender, MsgID: "om_in", Text: text})
}

func (e *testEnv) attach(sender string, kind domain.ContentKind, ref, caption string) error {
	return e.svc.HandleMessage(context.Background(), &MessageRequest{
		SenderID: sender,
		MsgID:    "om_in",
		Text:     caption,
		Items:    []InboundItem{{Kind: kind, PayloadRef: ref}},
	})
}
