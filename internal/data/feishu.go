package data

import (
	"context"
	"fmt"
	"time"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/infra/feishu"
)

// FeishuClient is the part of the Feishu client the transport uses
type FeishuClient interface {
	SendText(ctx context.Context, openID, text string) (feishu.Ref, error)
	SendAttachment(ctx context.Context, openID string, a feishu.Attachment, caption string) (feishu.Ref, error)
	DeleteMessage(ctx context.Context, messageID string) error
	Rehost(ctx context.Context, messageID string, a feishu.Attachment) (feishu.Attachment, error)
}

// feishuTransport implements the message transport over Feishu
type feishuTransport struct {
	client      FeishuClient
	sendTimeout time.Duration
}

// FeishuTransport is a repo.Transport that can also ingest payloads
type FeishuTransport interface {
	repo.Transport
	repo.PayloadIngester
}

// NewFeishuTransport creates a new Feishu transport. Each send is bounded
// by sendTimeout; zero leaves the caller's deadline alone.
func NewFeishuTransport(client FeishuClient, sendTimeout time.Duration) FeishuTransport {
	return &feishuTransport{client: client, sendTimeout: sendTimeout}
}

// Send delivers msg to its recipient open_id.
// Feishu has no per-message forward protection, so Protect is not applied.
func (t *feishuTransport) Send(ctx context.Context, msg domain.OutboundMessage) (domain.SentMessage, error) {
	if t.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.sendTimeout)
		defer cancel()
	}

	var (
		ref feishu.Ref
		err error
	)
	if msg.Kind == domain.KindText {
		ref, err = t.client.SendText(ctx, msg.Recipient, msg.Caption)
	} else {
		var a feishu.Attachment
		a, err = feishu.DecodePayload(msg.PayloadRef)
		if err != nil {
			return domain.SentMessage{}, err
		}
		ref, err = t.client.SendAttachment(ctx, msg.Recipient, a, msg.Caption)
	}
	if err != nil {
		return domain.SentMessage{}, err
	}
	return domain.SentMessage{ChatID: ref.ChatID, MessageID: ref.MessageID}, nil
}

// Delete recalls a sent message
func (t *feishuTransport) Delete(ctx context.Context, ref domain.SentMessage) error {
	if ref.MessageID == "" {
		return fmt.Errorf("delete message: empty message id")
	}
	return t.client.DeleteMessage(ctx, ref.MessageID)
}

// Ingest rehosts the attachment of sourceMsgID under bot-owned keys
func (t *feishuTransport) Ingest(ctx context.Context, sourceMsgID, payloadRef string) (string, error) {
	a, err := feishu.DecodePayload(payloadRef)
	if err != nil {
		return "", err
	}
	hosted, err := t.client.Rehost(ctx, sourceMsgID, a)
	if err != nil {
		return "", fmt.Errorf("ingest payload: %w", err)
	}
	return feishu.EncodePayload(hosted), nil
}
