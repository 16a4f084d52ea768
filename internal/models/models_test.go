package models

import (
	"testing"
)

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     User
		expected string
	}{
		{"full name preferred", User{Username: "jdoe", FullName: "John Doe"}, "John Doe"},
		{"username fallback", User{Username: "jdoe"}, "jdoe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.expected {
				t.Errorf("DisplayName() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUserToSummary(t *testing.T) {
	user := &User{ID: 4, Username: "ana", FullName: "Ana", Avatar: "avatars/4.webp"}

	summary := user.ToSummary()

	if summary.ID != 4 {
		t.Errorf("ToSummary ID = %d, want 4", summary.ID)
	}
	if summary.DisplayName != "Ana" {
		t.Errorf("ToSummary DisplayName = %q, want Ana", summary.DisplayName)
	}
	if summary.AvatarURL != "avatars/4.webp" {
		t.Errorf("ToSummary AvatarURL = %q, want avatars/4.webp", summary.AvatarURL)
	}
}

func TestDirectMessageParticipants(t *testing.T) {
	msg := &DirectMessage{SenderID: 1, ReceiverID: 2}

	tests := []struct {
		userID      uint
		participant bool
		peer        uint
	}{
		{1, true, 2},
		{2, true, 1},
		{3, false, 1},
	}

	for _, tt := range tests {
		if got := msg.IsParticipant(tt.userID); got != tt.participant {
			t.Errorf("IsParticipant(%d) = %v, want %v", tt.userID, got, tt.participant)
		}
		if got := msg.Peer(tt.userID); got != tt.peer {
			t.Errorf("Peer(%d) = %d, want %d", tt.userID, got, tt.peer)
		}
	}
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectMessage{}.TableName(), "direct_messages"},
		{GroupChat{}.TableName(), "group_chats"},
		{GroupChatMember{}.TableName(), "group_chat_members"},
		{GroupMessage{}.TableName(), "group_messages"},
		{GroupMessageRead{}.TableName(), "group_message_reads"},
		{Notification{}.TableName(), "notifications"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("TableName = %q, want %q", tt.got, tt.want)
		}
	}
}
