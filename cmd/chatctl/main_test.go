package main

import (
	"testing"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
)

func TestConversationLabel(t *testing.T) {
	cases := []struct {
		name string
		conv store.Conversation
		want string
	}{
		{
			"explicit name wins",
			store.Conversation{ID: "c1", Type: store.ConversationGroup, Name: "Night shift"},
			"Night shift",
		},
		{
			"direct falls back to member names",
			store.Conversation{ID: "c2", Type: store.ConversationDirect, Members: []store.Member{
				{UserID: "u1", FirstName: "Ada"},
				{UserID: "u2", FirstName: "Grace"},
			}},
			"Ada, Grace",
		},
		{
			"unnamed group falls back to id",
			store.Conversation{ID: "c3", Type: store.ConversationGroup},
			"c3",
		},
		{
			"direct without profile names falls back to id",
			store.Conversation{ID: "c4", Type: store.ConversationDirect, Members: []store.Member{
				{UserID: "u1"}, {UserID: "u2"},
			}},
			"c4",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := conversationLabel(tc.conv); got != tc.want {
				t.Errorf("conversationLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}
