package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/texts"
)

// commitUpload walks the operator through a full upload and returns the deep link
func commitUpload(t *testing.T, env *testEnv, protect, timer string) string {
	t.Helper()
	replies := texts.Default()

	require.NoError(t, env.text(operatorID, "/upload"))
	require.NoError(t, env.attach(operatorID, domain.KindPhoto, "P1", "x"))
	require.NoError(t, env.attach(operatorID, domain.KindDocument, "D1", ""))
	require.NoError(t, env.text(operatorID, "/d"))
	assert.Equal(t, replies.AskProtect, env.sender.lastText(operatorID))
	require.NoError(t, env.text(operatorID, protect))
	assert.Equal(t, replies.AskTimer, env.sender.lastText(operatorID))
	require.NoError(t, env.text(operatorID, timer))

	last := env.sender.lastText(operatorID)
	prefix := strings.TrimSuffix(replies.UploadComplete, "%s")
	require.True(t, strings.HasPrefix(last, prefix), last)
	link, hint, ok := strings.Cut(strings.TrimPrefix(last, prefix), "\n")
	require.True(t, ok, last)

	id := domain.SessionIDFromArg(link)
	require.NotEmpty(t, id)
	assert.Equal(t, fmt.Sprintf(replies.StartHint, id), hint)
	return link
}

func TestCommand_PhotoDocumentScenario(t *testing.T) {
	env := newTestEnv()

	link := commitUpload(t, env, "off", "0")
	assert.Contains(t, link, "appId=cli_test")
	sessionID := domain.SessionIDFromArg(link)
	require.Len(t, sessionID, domain.SessionIDLength)

	_, items, err := env.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "hosted:P1", items[0].PayloadRef)
	assert.Equal(t, "x", items[0].Caption)
	assert.Equal(t, domain.KindDocument, items[1].Kind)

	require.NoError(t, env.text(guestID, "/start "+link))

	got := env.sender.to(guestID)
	require.Len(t, got, 3)
	assert.Equal(t, domain.KindPhoto, got[0].Kind)
	assert.Equal(t, "hosted:P1", got[0].PayloadRef)
	assert.False(t, got[0].Protect)
	assert.Equal(t, domain.KindDocument, got[1].Kind)
	assert.False(t, got[1].Protect)
	assert.Equal(t, texts.Default().FilesSent, got[2].Caption)
	assert.Empty(t, env.scheduler.refs)

	// the bare id from the completion hint works the same as the link
	require.NoError(t, env.text(guestID, "/start "+sessionID))
	assert.Len(t, env.sender.to(guestID), 6)
}

func TestCommand_TimedProtectedDelivery(t *testing.T) {
	env := newTestEnv()
	link := commitUpload(t, env, "on", "5")

	require.NoError(t, env.text(guestID, "/start "+domain.SessionIDFromArg(link)))

	got := env.sender.to(guestID)
	require.Len(t, got, 4)
	assert.True(t, got[0].Protect)
	assert.True(t, got[1].Protect)
	assert.Equal(t, fmt.Sprintf(texts.Default().DeleteNotice, 5), got[2].Caption)
	assert.Equal(t, texts.Default().FilesSent, got[3].Caption)
	require.Len(t, env.scheduler.refs, 2, "only the content messages are scheduled")

	// the owner previews without protection or deletion
	require.NoError(t, env.text(operatorID, "/start "+link))
	assert.Len(t, env.scheduler.refs, 2)
}

func TestCommand_UnknownLink(t *testing.T) {
	env := newTestEnv()

	require.NoError(t, env.text(guestID, "/start deadbeef00"))

	got := env.sender.to(guestID)
	require.Len(t, got, 1)
	assert.Equal(t, texts.Default().InvalidLink, got[0].Caption)
}

func TestCommand_StartAndHelpMessages(t *testing.T) {
	env := newTestEnv()
	replies := texts.Default()

	require.NoError(t, env.text(guestID, "/start"))
	assert.Equal(t, replies.DefaultStart, env.sender.lastText(guestID))
	require.NoError(t, env.text(guestID, "/help"))
	assert.Equal(t, replies.DefaultHelp, env.sender.lastText(guestID))

	require.NoError(t, env.text(operatorID, "/setmessage start Hello  there"))
	assert.Equal(t, "Start message updated.", env.sender.lastText(operatorID))

	require.NoError(t, env.text(guestID, "/START"))
	assert.Equal(t, "Hello  there", env.sender.lastText(guestID))
}

func TestCommand_SetMessageRejections(t *testing.T) {
	env := newTestEnv()
	replies := texts.Default()

	require.NoError(t, env.text(guestID, "/setmessage start hi"))
	assert.Equal(t, replies.OwnerOnly, env.sender.lastText(guestID))

	require.NoError(t, env.text(operatorID, "/setmessage about hi"))
	assert.Equal(t, replies.SetMessageNames, env.sender.lastText(operatorID))

	require.NoError(t, env.text(operatorID, "/setmessage help"))
	assert.Equal(t, replies.SetMessageUsage, env.sender.lastText(operatorID))

	require.NoError(t, env.text(operatorID, "/setmessage"))
	assert.Equal(t, replies.SetMessageUsage, env.sender.lastText(operatorID))
}

func TestCommand_UploadIsOperatorOnly(t *testing.T) {
	env := newTestEnv()

	require.NoError(t, env.text(guestID, "/upload"))
	assert.Equal(t, texts.Default().OwnerOnly, env.sender.lastText(guestID))

	// without a draft, content is ignored
	require.NoError(t, env.attach(guestID, domain.KindPhoto, "P1", ""))
	assert.Len(t, env.sender.to(guestID), 1)
}

func TestCommand_InvalidAnswersRePrompt(t *testing.T) {
	env := newTestEnv()
	replies := texts.Default()

	require.NoError(t, env.text(operatorID, "/upload"))
	require.NoError(t, env.text(operatorID, "/done"))

	require.NoError(t, env.text(operatorID, "maybe"))
	assert.Equal(t, replies.InvalidProtect, env.sender.lastText(operatorID))
	require.NoError(t, env.attach(operatorID, domain.KindPhoto, "P1", "on"))
	assert.Equal(t, replies.InvalidProtect, env.sender.lastText(operatorID))
	require.NoError(t, env.text(operatorID, "ON"))

	for _, in := range []string{"-1", "10081", "abc"} {
		require.NoError(t, env.text(operatorID, in))
		assert.Equal(t, replies.InvalidTimer, env.sender.lastText(operatorID), in)
	}
	count, _ := env.sessions.Count(context.Background())
	assert.Zero(t, count)

	require.NoError(t, env.text(operatorID, "10080"))
	count, _ = env.sessions.Count(context.Background())
	assert.Equal(t, 1, count)
}

func TestCommand_CancelPersistsNothing(t *testing.T) {
	env := newTestEnv()
	replies := texts.Default()

	require.NoError(t, env.text(operatorID, "/cancel"))
	assert.Equal(t, replies.NoUpload, env.sender.lastText(operatorID))

	require.NoError(t, env.text(operatorID, "/upload"))
	require.NoError(t, env.attach(operatorID, domain.KindVideo, "V1", ""))
	require.NoError(t, env.text(operatorID, "some text"))
	require.NoError(t, env.text(operatorID, "/d"))
	require.NoError(t, env.text(operatorID, "/cancel"))
	assert.Equal(t, replies.UploadCancelled, env.sender.lastText(operatorID))

	count, _ := env.sessions.Count(context.Background())
	assert.Zero(t, count)
	assert.False(t, env.svc.uc.Authoring.Active(operatorID))
}

func TestCommand_CommandsDuringUploadAreRouted(t *testing.T) {
	env := newTestEnv()
	replies := texts.Default()

	require.NoError(t, env.text(operatorID, "/upload"))
	require.NoError(t, env.text(operatorID, "/help"))
	assert.Equal(t, replies.DefaultHelp, env.sender.lastText(operatorID))

	require.NoError(t, env.text(operatorID, "/unknown thing"))
	assert.Equal(t, replies.ItemReceived, env.sender.lastText(operatorID))

	state, ok := env.svc.uc.Authoring.State(operatorID).(domain.Collecting)
	require.True(t, ok)
	items := state.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "/unknown thing", items[0].Caption)
}

func TestCommand_IngestFailureRejectsItem(t *testing.T) {
	env := newTestEnv()

	require.NoError(t, env.text(operatorID, "/upload"))
	require.NoError(t, env.attach(operatorID, domain.KindPhoto, "bad-key", ""))
	assert.Equal(t, texts.Default().ItemRejected, env.sender.lastText(operatorID))

	state := env.svc.uc.Authoring.State(operatorID).(domain.Collecting)
	assert.Empty(t, state.Items())
}

func TestCommand_MultiAttachmentMessageIsAllOrNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.text(operatorID, "/upload"))
	require.NoError(t, env.svc.HandleMessage(ctx, &MessageRequest{
		SenderID: operatorID,
		MsgID:    "om_post",
		Text:     "album",
		Items: []InboundItem{
			{Kind: domain.KindPhoto, PayloadRef: "P1"},
			{Kind: domain.KindPhoto, PayloadRef: "bad2"},
		},
	}))
	assert.Equal(t, texts.Default().ItemRejected, env.sender.lastText(operatorID))

	state := env.svc.uc.Authoring.State(operatorID).(domain.Collecting)
	assert.Empty(t, state.Items())

	require.NoError(t, env.svc.HandleMessage(ctx, &MessageRequest{
		SenderID: operatorID,
		MsgID:    "om_post2",
		Text:     "album",
		Items: []InboundItem{
			{Kind: domain.KindPhoto, PayloadRef: "P1"},
			{Kind: domain.KindPhoto, PayloadRef: "P2"},
		},
	}))
	assert.Equal(t, texts.Default().ItemReceived, env.sender.lastText(operatorID))

	state = env.svc.uc.Authoring.State(operatorID).(domain.Collecting)
	items := state.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "hosted:P1", items[0].PayloadRef)
	assert.Equal(t, "album", items[0].Caption)
	assert.Equal(t, "hosted:P2", items[1].PayloadRef)
	assert.Empty(t, items[1].Caption)
}

func TestCommand_BroadcastSkipsFailedRecipient(t *testing.T) {
	env := newTestEnv()
	for _, id := range []string{"ou_a", "ou_b", "ou_c"} {
		require.NoError(t, env.text(id, "/start"))
	}
	env.sender.fail = map[string]bool{"ou_b": true}

	require.NoError(t, env.text(operatorID, "/broadcast hello all"))
	env.svc.Wait()

	assert.Equal(t, "hello all", env.sender.lastText("ou_a"))
	assert.Equal(t, "hello all", env.sender.lastText("ou_c"))
	// the operator registered too and receives the broadcast before the report
	assert.Equal(t, fmt.Sprintf(texts.Default().BroadcastDone, 3, 1, 0), env.sender.lastText(operatorID))
}

func TestCommand_BroadcastRejections(t *testing.T) {
	env := newTestEnv()

	require.NoError(t, env.text(guestID, "/broadcast spam"))
	require.NoError(t, env.text(operatorID, "/broadcast"))
	env.svc.Wait()

	assert.Equal(t, texts.Default().OwnerOnly, env.sender.lastText(guestID))
	assert.Equal(t, texts.Default().BroadcastUsage, env.sender.lastText(operatorID))
	assert.Len(t, env.sender.to(guestID), 1)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		cmd     string
		arg     string
		wantCmd bool
	}{
		{"/start", "start", "", true},
		{"  /Start abc123  ", "start", "abc123", true},
		{"/setmessage help Use /start", "setmessage", "help Use /start", true},
		{"/", "", "", false},
		{"hello", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		cmd, arg, ok := parseCommand(tt.in)
		assert.Equal(t, tt.wantCmd, ok, tt.in)
		assert.Equal(t, tt.cmd, cmd, tt.in)
		assert.Equal(t, tt.arg, arg, tt.in)
	}
}
