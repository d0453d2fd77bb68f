package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/infra/feishu"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/metrics"
	"github.com/devricklin/feishu-vault/internal/service"
)

// seenTTL is how long a message id is remembered for deduplication
const seenTTL = 5 * time.Minute

// MessageSource delivers parsed Feishu messages
type MessageSource interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
	Stop()
}

// MessageHandler processes one inbound request
type MessageHandler interface {
	HandleMessage(ctx context.Context, req *service.MessageRequest) error
}

// FeishuServer feeds private Feishu messages to the command service
type FeishuServer struct {
	source  MessageSource
	handler MessageHandler
	log     zerolog.Logger

	ctx context.Context

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
	now        func() time.Time
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source MessageSource, handler MessageHandler) *FeishuServer {
	return &FeishuServer{
		source:   source,
		handler:  handler,
		log:      logging.Logger("server"),
		ctx:      context.Background(),
		seenMsgs: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Start connects to Feishu and blocks until ctx is cancelled or the connection fails
func (s *FeishuServer) Start(ctx context.Context) error {
	s.ctx = ctx
	s.source.OnMessage(s.handleMessage)
	return s.source.Start(ctx)
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.source.Stop()
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	log := s.log.With().Str("msg_id", msg.MsgID).Str("sender", msg.SenderID).Logger()

	if msg.ChatType != "p2p" {
		log.Debug().Str("chat_type", msg.ChatType).Msg("ignoring non-private chat")
		return
	}
	if s.markSeen(msg.MsgID) {
		log.Debug().Msg("duplicate message ignored")
		return
	}

	req, ok := toRequest(msg)
	if !ok {
		log.Debug().Str("msg_type", msg.MsgType).Msg("ignoring message without usable content")
		return
	}
	metrics.InboundMessages.WithLabelValues(msg.MsgType).Inc()
	log.Debug().Str("msg_type", msg.MsgType).Int("attachments", len(req.Items)).Msg("message received")

	if err := s.handler.HandleMessage(s.ctx, req); err != nil {
		log.Error().Err(err).Msg("handle message failed")
	}
}

// toRequest maps a Feishu message to a command request
func toRequest(msg *feishu.Message) (*service.MessageRequest, bool) {
	req := &service.MessageRequest{
		ChatID:   msg.ChatID,
		MsgID:    msg.MsgID,
		SenderID: msg.SenderID,
		Text:     msg.Text,
	}
	for _, a := range msg.Attachments {
		kind, ok := kindOf(a)
		if !ok {
			continue
		}
		req.Items = append(req.Items, service.InboundItem{Kind: kind, PayloadRef: feishu.EncodePayload(a)})
	}
	if req.Text == "" && len(req.Items) == 0 {
		return nil, false
	}
	return req, true
}

func kindOf(a feishu.Attachment) (domain.ContentKind, bool) {
	if !a.Valid() {
		return "", false
	}
	switch a.Type {
	case feishu.MsgTypeImage:
		return domain.KindPhoto, true
	case feishu.MsgTypeMedia:
		return domain.KindVideo, true
	case feishu.MsgTypeFile:
		return domain.KindDocument, true
	}
	return "", false
}

// markSeen records msgID and reports whether it was already seen.
// Expired entries are dropped on every call.
func (s *FeishuServer) markSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}

	if _, exists := s.seenMsgs[msgID]; exists {
		return true
	}
	s.seenMsgs[msgID] = now
	return false
}
