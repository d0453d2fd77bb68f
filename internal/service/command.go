package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/biz"
	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/logging"
	"github.com/devricklin/feishu-vault/internal/texts"
)

// Chat commands, without the leading slash
const (
	cmdStart      = "start"
	cmdHelp       = "help"
	cmdSetMessage = "setmessage"
	cmdBroadcast  = "broadcast"
	cmdUpload     = "upload"
	cmdDone       = "d"
	cmdDoneLong   = "done"
	cmdCancel     = "cancel"
)

// InboundItem is one attachment of an inbound message
type InboundItem struct {
	Kind       domain.ContentKind
	PayloadRef string
}

// MessageRequest represents an inbound chat message
type MessageRequest struct {
	ChatID   string
	MsgID    string
	SenderID string
	Text     string        // text body, or the caption of the attachments
	Items    []InboundItem // attachments in message order
}

// CommandService routes chat messages to the vault usecases
type CommandService struct {
	uc       *biz.Usecases
	sender   repo.MessageSender
	ingester repo.PayloadIngester // nil keeps payload refs as received
	replies  texts.Replies
	log      zerolog.Logger

	// background work (broadcasts) runs under ctx
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCommandService creates a new command service
func NewCommandService(uc *biz.Usecases, sender repo.MessageSender, ingester repo.PayloadIngester, replies texts.Replies) *CommandService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CommandService{
		uc:       uc,
		sender:   sender,
		ingester: ingester,
		replies:  replies,
		log:      logging.Logger("command"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Wait blocks until running background work has finished
func (s *CommandService) Wait() {
	s.wg.Wait()
}

// Stop cancels running broadcasts and waits for them to report
func (s *CommandService) Stop() {
	s.cancel()
	s.wg.Wait()
}

// HandleMessage processes one inbound message
func (s *CommandService) HandleMessage(ctx context.Context, req *MessageRequest) error {
	if req.SenderID == "" {
		return fmt.Errorf("message %s has no sender", req.MsgID)
	}
	if err := s.uc.Users.Register(ctx, req.SenderID); err != nil {
		s.log.Warn().Err(err).Str("user", req.SenderID).Msg("user registration failed")
	}

	cmd, arg, isCmd := parseCommand(req.Text)
	if len(req.Items) > 0 {
		isCmd = false
	}

	if s.uc.Authoring.Active(req.SenderID) {
		if isCmd {
			switch cmd {
			case cmdStart, cmdHelp, cmdSetMessage, cmdBroadcast, cmdUpload, cmdCancel:
				return s.dispatch(ctx, req, cmd, arg)
			}
		}
		return s.handleDraftInput(ctx, req, cmd, isCmd)
	}

	if !isCmd {
		s.log.Debug().Str("user", req.SenderID).Msg("ignoring message outside of a command")
		return nil
	}
	return s.dispatch(ctx, req, cmd, arg)
}

func (s *CommandService) dispatch(ctx context.Context, req *MessageRequest, cmd, arg string) error {
	switch cmd {
	case cmdStart:
		return s.handleStart(ctx, req.SenderID, arg)
	case cmdHelp:
		return s.replyCanned(ctx, req.SenderID, domain.MessageHelp, s.replies.DefaultHelp)
	case cmdSetMessage:
		return s.handleSetMessage(ctx, req.SenderID, arg)
	case cmdBroadcast:
		s.startBroadcast(req.SenderID, arg)
		return nil
	case cmdUpload:
		return s.handleUpload(ctx, req.SenderID)
	case cmdCancel:
		return s.handleCancel(ctx, req.SenderID)
	case cmdDone, cmdDoneLong:
		return s.reply(ctx, req.SenderID, s.replies.NoUpload)
	}
	s.log.Debug().Str("command", cmd).Msg("unknown command")
	return nil
}

// handleStart shows the start message, or delivers the session named by arg
func (s *CommandService) handleStart(ctx context.Context, userID, arg string) error {
	if arg == "" {
		return s.replyCanned(ctx, userID, domain.MessageStart, s.replies.DefaultStart)
	}

	sessionID := domain.SessionIDFromArg(arg)
	if sessionID == "" {
		return s.reply(ctx, userID, s.replies.InvalidLink)
	}

	result, err := s.uc.Delivery.Deliver(ctx, userID, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.reply(ctx, userID, s.replies.InvalidLink)
	}
	if err != nil {
		_ = s.reply(ctx, userID, s.replies.InternalError)
		return err
	}

	if len(result.Sent) == 0 {
		return s.reply(ctx, userID, s.replies.SendFailed)
	}
	if !result.DeleteAt.IsZero() {
		if err := s.reply(ctx, userID, fmt.Sprintf(s.replies.DeleteNotice, result.Session.TimerMinutes)); err != nil {
			return err
		}
	}
	return s.reply(ctx, userID, s.replies.FilesSent)
}

func (s *CommandService) handleSetMessage(ctx context.Context, userID, arg string) error {
	name, content := splitFirst(arg)

	msgName, err := s.uc.Messages.SetMessage(ctx, userID, name, content)
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return s.reply(ctx, userID, s.replies.OwnerOnly)
	case name == "" || errors.Is(err, domain.ErrEmptyText):
		return s.reply(ctx, userID, s.replies.SetMessageUsage)
	case errors.Is(err, domain.ErrUnknownMessageName):
		return s.reply(ctx, userID, s.replies.SetMessageNames)
	case err != nil:
		_ = s.reply(ctx, userID, s.replies.InternalError)
		return err
	}

	title := string(msgName)
	title = strings.ToUpper(title[:1]) + title[1:]
	return s.reply(ctx, userID, fmt.Sprintf(s.replies.MessageUpdated, title))
}

// startBroadcast runs the fan-out in the background and reports to the sender
func (s *CommandService) startBroadcast(senderID, text string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		report, err := s.uc.Broadcast.Broadcast(s.ctx, senderID, text)
		// the report goes out even when the service is stopping
		replyCtx := context.WithoutCancel(s.ctx)
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			_ = s.reply(replyCtx, senderID, s.replies.OwnerOnly)
		case errors.Is(err, domain.ErrValidation):
			_ = s.reply(replyCtx, senderID, s.replies.BroadcastUsage)
		case err != nil:
			s.log.Error().Err(err).Msg("broadcast failed")
			_ = s.reply(replyCtx, senderID, s.replies.InternalError)
		default:
			_ = s.reply(replyCtx, senderID, fmt.Sprintf(s.replies.BroadcastDone, report.Delivered, report.Failed, report.Skipped))
		}
	}()
}

func (s *CommandService) handleUpload(ctx context.Context, userID string) error {
	if err := s.uc.Authoring.Start(userID); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			return s.reply(ctx, userID, s.replies.OwnerOnly)
		}
		return err
	}
	return s.reply(ctx, userID, s.replies.UploadStarted)
}

func (s *CommandService) handleCancel(ctx context.Context, userID string) error {
	if err := s.uc.Authoring.Cancel(userID); err != nil {
		return s.reply(ctx, userID, s.replies.NoUpload)
	}
	return s.reply(ctx, userID, s.replies.UploadCancelled)
}

// handleDraftInput feeds a message to the sender's draft according to its step
func (s *CommandService) handleDraftInput(ctx context.Context, req *MessageRequest, cmd string, isCmd bool) error {
	userID := req.SenderID

	switch s.uc.Authoring.State(userID).(type) {
	case domain.Collecting:
		if isCmd && (cmd == cmdDone || cmd == cmdDoneLong) {
			n, err := s.uc.Authoring.Done(userID)
			if err != nil {
				return err
			}
			s.log.Info().Int("items", n).Msg("collection finished")
			return s.reply(ctx, userID, s.replies.AskProtect)
		}
		return s.collect(ctx, req)

	case domain.AwaitingProtect:
		if len(req.Items) > 0 {
			return s.reply(ctx, userID, s.replies.InvalidProtect)
		}
		err := s.uc.Authoring.ChooseProtect(userID, req.Text)
		if errors.Is(err, domain.ErrValidation) {
			return s.reply(ctx, userID, s.replies.InvalidProtect)
		}
		if err != nil {
			return err
		}
		return s.reply(ctx, userID, s.replies.AskTimer)

	case domain.AwaitingTimer:
		if len(req.Items) > 0 {
			return s.reply(ctx, userID, s.replies.InvalidTimer)
		}
		result, err := s.uc.Authoring.ChooseTimer(ctx, userID, req.Text)
		if errors.Is(err, domain.ErrValidation) {
			return s.reply(ctx, userID, s.replies.InvalidTimer)
		}
		if err != nil {
			_ = s.reply(ctx, userID, s.replies.CommitFailed)
			return err
		}
		done := fmt.Sprintf(s.replies.UploadComplete, result.DeepLink) + "\n" + fmt.Sprintf(s.replies.StartHint, result.Session.ID)
		return s.reply(ctx, userID, done)
	}
	return nil
}

// collect adds the attachments of req, or its text, to the draft
func (s *CommandService) collect(ctx context.Context, req *MessageRequest) error {
	userID := req.SenderID

	if len(req.Items) == 0 {
		if strings.TrimSpace(req.Text) == "" {
			return s.reply(ctx, userID, s.replies.ItemRejected)
		}
		if _, err := s.uc.Authoring.AddItem(userID, domain.DraftItem{Kind: domain.KindText, Caption: req.Text}); err != nil {
			s.log.Warn().Err(err).Msg("text item rejected")
			return s.reply(ctx, userID, s.replies.ItemRejected)
		}
		return s.reply(ctx, userID, s.replies.ItemReceived)
	}

	// Host every attachment first; the message joins the draft whole or not at all.
	items := make([]domain.DraftItem, 0, len(req.Items))
	for i, item := range req.Items {
		caption := ""
		if i == 0 {
			caption = req.Text
		}

		ref := item.PayloadRef
		if s.ingester != nil {
			hosted, err := s.ingester.Ingest(ctx, req.MsgID, ref)
			if err != nil {
				s.log.Warn().Err(err).Str("msg_id", req.MsgID).Str("kind", string(item.Kind)).Msg("payload ingest failed")
				return s.reply(ctx, userID, s.replies.ItemRejected)
			}
			ref = hosted
		}
		items = append(items, domain.DraftItem{Kind: item.Kind, PayloadRef: ref, Caption: caption})
	}

	if _, err := s.uc.Authoring.AddItems(userID, items...); err != nil {
		s.log.Warn().Err(err).Int("items", len(items)).Msg("items rejected")
		return s.reply(ctx, userID, s.replies.ItemRejected)
	}
	return s.reply(ctx, userID, s.replies.ItemReceived)
}

func (s *CommandService) replyCanned(ctx context.Context, userID string, name domain.MessageName, def string) error {
	content, err := s.uc.Messages.GetMessage(ctx, name, def)
	if err != nil {
		s.log.Warn().Err(err).Str("name", string(name)).Msg("canned message lookup failed, using default")
	}
	return s.reply(ctx, userID, content)
}

func (s *CommandService) reply(ctx context.Context, userID, text string) error {
	if _, err := s.sender.Send(ctx, domain.TextMessage(userID, text)); err != nil {
		return fmt.Errorf("reply to %s: %w", userID, err)
	}
	return nil
}

// parseCommand splits "/cmd rest" into its lowercased name and argument
func parseCommand(text string) (cmd, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, rest := splitFirst(text[1:])
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), rest, true
}

// splitFirst splits s at its first whitespace run and trims both parts
func splitFirst(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
