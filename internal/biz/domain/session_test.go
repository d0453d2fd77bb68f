package domain

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ProtectFor_OwnerExempt(t *testing.T) {
	session := &Session{ID: "abc", OwnerID: "ou_owner", Protect: true}

	assert.False(t, session.ProtectFor("ou_owner"), "owner must receive unprotected copies")
	assert.True(t, session.ProtectFor("ou_guest"))

	session.Protect = false
	assert.False(t, session.ProtectFor("ou_guest"))
}

func TestSession_DeleteAfter(t *testing.T) {
	session := &Session{ID: "abc", OwnerID: "ou_owner", TimerMinutes: 5}

	assert.Equal(t, 5*time.Minute, session.DeleteAfter("ou_guest"))
	assert.Zero(t, session.DeleteAfter("ou_owner"))

	session.TimerMinutes = 0
	assert.Zero(t, session.DeleteAfter("ou_guest"))
}

func TestNewSessionID_ShortAndURLSafe(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		require.Len(t, id, SessionIDLength)
		assert.Equal(t, id, url.QueryEscape(id))
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestBuildDeepLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{"plain base", "https://vault.example.com/open", "https://vault.example.com/open?start=a1b2c3"},
		{"keeps existing query", "https://applink.feishu.cn/client/bot/open?appId=cli_1", "https://applink.feishu.cn/client/bot/open?appId=cli_1&start=a1b2c3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDeepLink(tt.base, "a1b2c3"))
		})
	}
}

func TestSessionIDFromArg(t *testing.T) {
	assert.Equal(t, "a1b2c3", SessionIDFromArg(" a1b2c3 "))
	assert.Equal(t, "a1b2c3", SessionIDFromArg(BuildDeepLink("https://vault.example.com/open?x=1", "a1b2c3")))
	assert.Equal(t, "", SessionIDFromArg("https://vault.example.com/open"))
}

func TestParseMessageName(t *testing.T) {
	name, err := ParseMessageName(" START ")
	require.NoError(t, err)
	assert.Equal(t, MessageStart, name)

	_, err = ParseMessageName("welcome")
	assert.ErrorIs(t, err, ErrUnknownMessageName)
}

func TestOperator_Authorize(t *testing.T) {
	op := NewOperator("ou_owner")

	assert.NoError(t, op.Authorize("ou_owner"))
	assert.ErrorIs(t, op.Authorize("ou_guest"), ErrPermissionDenied)
	assert.ErrorIs(t, NewOperator("").Authorize(""), ErrPermissionDenied, "an unset operator authorizes nobody")
}
