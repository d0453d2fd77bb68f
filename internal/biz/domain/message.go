package domain

// OutboundMessage is one message handed to the transport
type OutboundMessage struct {
	Recipient  string // user open_id
	Kind       ContentKind
	PayloadRef string
	Caption    string
	Protect    bool
}

// SentMessage identifies a message the transport delivered.
// It is the exact reference a later delete call needs.
type SentMessage struct {
	ChatID    string
	MessageID string
}

// TextMessage builds a plain text message for recipient
func TextMessage(recipient, text string) OutboundMessage {
	return OutboundMessage{
		Recipient: recipient,
		Kind:      KindText,
		Caption:   text,
	}
}

// ItemMessage builds the outbound message for a stored item
func ItemMessage(recipient string, item ContentItem, protect bool) OutboundMessage {
	return OutboundMessage{
		Recipient:  recipient,
		Kind:       item.Kind,
		PayloadRef: item.PayloadRef,
		Caption:    item.Caption,
		Protect:    protect,
	}
}
