package repo

import (
	"context"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
)

// MessageSender is the transport's send capability
type MessageSender interface {
	// Send delivers one message and returns the reference of the sent copy
	Send(ctx context.Context, msg domain.OutboundMessage) (domain.SentMessage, error)
}

// MessageDeleter is the transport's delete capability
type MessageDeleter interface {
	// Delete removes a previously sent message
	Delete(ctx context.Context, ref domain.SentMessage) error
}

// Transport combines both capabilities
type Transport interface {
	MessageSender
	MessageDeleter
}

// PayloadIngester turns a payload received from a user into a reference the
// bot can resend to anyone
type PayloadIngester interface {
	// Ingest copies the payload of sourceMsgID and returns the durable reference
	Ingest(ctx context.Context, sourceMsgID, payloadRef string) (string, error)
}
