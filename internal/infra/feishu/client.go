package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/logging"
)

// Feishu message types handled by the vault
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeFile  = "file"
	MsgTypeMedia = "media"
	MsgTypePost  = "post"
)

// eventQueueSize bounds inbound events waiting for the handler
const eventQueueSize = 256

// Message represents a received Feishu message
type Message struct {
	ChatID      string
	MsgID       string
	MsgType     string // text, image, file, media, post
	ChatType    string // p2p (private), group
	SenderID    string // sender open_id
	SenderType  string // user, app
	Text        string // text body, or the caption of a post
	Attachments []Attachment
	CreateTime  int64 // milliseconds Unix timestamp from Feishu
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Ref identifies a message the bot sent
type Ref struct {
	ChatID    string
	MessageID string
}

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	events    chan *larkim.P2MessageReceiveV1
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewClient creates a new Feishu client. The API client is usable right
// away; Start is only needed to receive messages.
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		events:    make(chan *larkim.P2MessageReceiveV1, eventQueueSize),
		log:       logging.Logger("feishu"),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done or
// the connection fails.
func (c *Client) Start(ctx context.Context) error {
	c.startDispatch(ctx)

	// The SDK must ACK quickly or Feishu redelivers. Events are queued and
	// handled one at a time so a user's uploads keep their order.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			select {
			case c.events <- event:
			default:
				c.log.Warn().Msg("event queue full, dropping message")
			}
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info().Msg("starting websocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
// Stop cancels the connection and waits for the handler in flight to return
func (c *Client) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Client) startDispatch(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.dispatchLoop()
}

func (c *Client) dispatchLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case event := <-c.events:
			if msg := ParseEvent(event); msg != nil && c.onMessage != nil {
				c.onMessage(msg)
			}
		}
	}
}

// ParseEvent converts a receive event into a Message.
// It returns nil for bot messages and unsupported message types.
func ParseEvent(event *larkim.P2MessageReceiveV1) *Message {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	rawMsg := event.Event.Message

	msg := &Message{
		ChatID:   deref(rawMsg.ChatId),
		MsgID:    deref(rawMsg.MessageId),
		MsgType:  deref(rawMsg.MessageType),
		ChatType: deref(rawMsg.ChatType),
	}

	if sender := event.Event.Sender; sender != nil {
		msg.SenderType = deref(sender.SenderType)
		if sender.SenderId != nil {
			msg.SenderID = deref(sender.SenderId.OpenId)
		}
	}
	// Messages sent by the bot itself
	if msg.SenderType == "app" {
		return nil
	}

	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	content := deref(rawMsg.Content)
	switch msg.MsgType {
	case MsgTypeText:
		msg.Text = parseTextContent(content)
	case MsgTypeImage, MsgTypeFile, MsgTypeMedia:
		a, ok := parseAttachmentContent(msg.MsgType, content)
		if !ok {
			return nil
		}
		msg.Attachments = []Attachment{a}
	case MsgTypePost:
		msg.Text, msg.Attachments = parsePostContent(content)
	default:
		return nil
	}
	return msg
}

func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

func parseAttachmentContent(msgType, content string) (Attachment, bool) {
	var parsed struct {
		ImageKey string `json:"image_key"`
		FileKey  string `json:"file_key"`
		FileName string `json:"file_name"`
		Duration int    `json:"duration"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Attachment{}, false
	}
	a := Attachment{
		Type:     msgType,
		ImageKey: parsed.ImageKey,
		FileKey:  parsed.FileKey,
		FileName: parsed.FileName,
		Duration: parsed.Duration,
	}
	return a, a.Valid()
}

// parsePostContent extracts the text lines and the img/media elements of a
// rich text message, in document order
func parsePostContent(content string) (string, []Attachment) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag      string `json:"tag"`
			Text     string `json:"text,omitempty"`
			ImageKey string `json:"image_key,omitempty"`
			FileKey  string `json:"file_key,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil
	}

	var textParts []string
	var attachments []Attachment
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}
	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text", "a":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "img":
				if elem.ImageKey != "" {
					attachments = append(attachments, Attachment{Type: MsgTypeImage, ImageKey: elem.ImageKey})
				}
			case "media":
				if elem.FileKey != "" {
					attachments = append(attachments, Attachment{Type: MsgTypeMedia, FileKey: elem.FileKey, ImageKey: elem.ImageKey})
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}
	return strings.Join(textParts, "\n"), attachments
}

// SendText sends a text message to the user with openID
func (c *Client) SendText(ctx context.Context, openID, text string) (Ref, error) {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return c.create(ctx, openID, larkim.MsgTypeText, string(contentJSON))
}

// SendAttachment sends a stored attachment to the user with openID.
// Images and videos with a caption go out as one rich text message.
// File messages cannot carry text, so a document caption is dropped.
func (c *Client) SendAttachment(ctx context.Context, openID string, a Attachment, caption string) (Ref, error) {
	switch a.Type {
	case MsgTypeImage:
		if caption == "" {
			contentJSON, _ := json.Marshal(map[string]string{"image_key": a.ImageKey})
			return c.create(ctx, openID, larkim.MsgTypeImage, string(contentJSON))
		}
		return c.sendPost(ctx, openID, map[string]interface{}{"tag": "img", "image_key": a.ImageKey}, caption)

	case MsgTypeMedia:
		if caption == "" {
			contentJSON, _ := json.Marshal(map[string]string{"file_key": a.FileKey, "image_key": a.ImageKey})
			return c.create(ctx, openID, larkim.MsgTypeMedia, string(contentJSON))
		}
		return c.sendPost(ctx, openID, map[string]interface{}{"tag": "media", "file_key": a.FileKey, "image_key": a.ImageKey}, caption)

	case MsgTypeFile:
		if caption != "" {
			c.log.Debug().Str("file_key", a.FileKey).Msg("file messages have no caption, dropping it")
		}
		contentJSON, _ := json.Marshal(map[string]string{"file_key": a.FileKey})
		return c.create(ctx, openID, larkim.MsgTypeFile, string(contentJSON))
	}
	return Ref{}, fmt.Errorf("unsupported attachment type %q", a.Type)
}

// sendPost sends a rich text message with elem on the first line and the
// caption on the second
func (c *Client) sendPost(ctx context.Context, openID string, elem map[string]interface{}, caption string) (Ref, error) {
	post := map[string]interface{}{
		"zh_cn": map[string]interface{}{
			"title": "",
			"content": [][]map[string]interface{}{
				{elem},
				{{"tag": "text", "text": caption}},
			},
		},
	}
	contentJSON, _ := json.Marshal(post)
	return c.create(ctx, openID, larkim.MsgTypePost, string(contentJSON))
}

func (c *Client) create(ctx context.Context, openID, msgType, content string) (Ref, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return Ref{}, fmt.Errorf("send %s message failed: %w", msgType, err)
	}
	if !resp.Success() {
		return Ref{}, fmt.Errorf("send %s message error: %s", msgType, resp.Msg)
	}

	ref := Ref{}
	if resp.Data != nil {
		ref.ChatID = deref(resp.Data.ChatId)
		ref.MessageID = deref(resp.Data.MessageId)
	}
	c.log.Debug().Str("msg_type", msgType).Str("message_id", ref.MessageID).Msg("message sent")
	return ref, nil
}

// DeleteMessage recalls a message the bot sent
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("delete message error: %s", resp.Msg)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
