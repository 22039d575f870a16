package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classchat-io/classchat/internal/protocol"
)

func TestFormatEnvelope(t *testing.T) {
	tests := []struct {
		name string
		env  *protocol.Envelope
		want string
	}{
		{
			name: "private message",
			env:  protocol.NewPrivate("alice", "bob", "hi"),
			want: "[alice] hi",
		},
		{
			name: "group message",
			env:  protocol.NewGroupMessage("alice", "cs101", "lecture moved"),
			want: "[cs101/alice] lecture moved",
		},
		{
			name: "success",
			env:  protocol.NewSuccess("Message delivered to bob"),
			want: "✓ Message delivered to bob",
		},
		{
			name: "error",
			env:  protocol.NewError("Group \"x\" not found"),
			want: "✗ Group \"x\" not found",
		},
		{
			name: "offline notice",
			env:  protocol.NewOffline("alice", "\"dave\" is offline."),
			want: "… \"dave\" is offline.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEnvelope(tt.env))
		})
	}
}

func TestFormatEnvelope_UserList(t *testing.T) {
	env := protocol.NewUserList("alice", protocol.UserListData{Users: []protocol.UserStatus{
		{Username: "alice", Status: "online"},
		{Username: "bob", Status: "online"},
	}})

	out := formatEnvelope(env)
	assert.Contains(t, out, "alice (online)")
	assert.Contains(t, out, "bob (online)")
}

func TestFormatEnvelope_EmptyHistory(t *testing.T) {
	env := protocol.NewHistoryResponse("alice", protocol.HistoryResponseData{Peer: "bob"})

	require.Equal(t, "No history with bob.", formatEnvelope(env))
}

func TestFormatEnvelope_HistoryEntries(t *testing.T) {
	env := protocol.NewHistoryResponse("alice", protocol.HistoryResponseData{
		Peer: "bob",
		Messages: []protocol.HistoryEntry{
			{Sender: "alice", Text: "one", Timestamp: "2026-08-27T10:00:00Z"},
			{Sender: "bob", Text: "two", Timestamp: "2026-08-27T10:01:00Z"},
		},
	})

	out := formatEnvelope(env)
	assert.Contains(t, out, "alice: one")
	assert.Contains(t, out, "bob: two")
}
