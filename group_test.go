package msgbox

import (
	"testing"
	"time"
)

func TestGroupKey(t *testing.T) {
	tests := []struct {
		a, b UserID
		want string
	}{
		{5, 9, "9_5"},
		{9, 5, "9_5"},
		{10, 9, "10_9"},
		{9, 10, "10_9"},
		{3, 3, "3_3"},
	}
	for _, tt := range tests {
		if got := GroupKey(tt.a, tt.b); got != tt.want {
			t.Errorf("GroupKey(%d, %d) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
		if GroupKey(tt.a, tt.b) != GroupKey(tt.b, tt.a) {
			t.Errorf("GroupKey(%d, %d) is not symmetric", tt.a, tt.b)
		}
	}

	if _, ok := ConversationGroupFor(NoUser, 9); ok {
		t.Error("expected no group without sender")
	}
	if _, ok := ConversationGroupFor(5, NoUser); ok {
		t.Error("expected no group without recipient")
	}
	if g, ok := ConversationGroupFor(5, 9); !ok || g != "9_5" {
		t.Errorf("expected 9_5, got %q", g)
	}
}

func TestOpponent(t *testing.T) {
	inbox := &Message{SenderID: 5, RecipientID: 9, Type: TypeInbox}
	alert := &Message{RecipientID: 9, Type: TypeAlert}

	tests := []struct {
		name   string
		msg    *Message
		viewer UserID
		want   UserID
		ok     bool
	}{
		{"sender sees recipient", inbox, 5, 9, true},
		{"recipient sees sender", inbox, 9, 5, true},
		{"stranger", inbox, 42, NoUser, false},
		{"alert has no opponent", alert, 9, NoUser, false},
		{"nil message", nil, 9, NoUser, false},
		{"no viewer", inbox, NoUser, NoUser, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Opponent(tt.msg, tt.viewer)
			if got != tt.want || ok != tt.ok {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestMessageHelpers(t *testing.T) {
	msg := &Message{
		Type:      TypeInbox,
		CreatedAt: time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC),
	}
	if got := WroteAtFormatted(msg); got != "Mar 01, 2024 -  2:05 PM" {
		t.Errorf("unexpected format %q", got)
	}
	if !IsInbox(msg) || IsRead(msg) {
		t.Error("unexpected flags")
	}
	msg.IsRead = true
	if !IsRead(msg) {
		t.Error("expected read")
	}
	if IsInbox(nil) || IsRead(nil) || WroteAtFormatted(nil) != "" {
		t.Error("nil message helpers must be zero")
	}
}
