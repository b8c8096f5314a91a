package msgbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/msgbox/store"
)

func TestValidateMessageData(t *testing.T) {
	tests := []struct {
		name       string
		data       store.MessageData
		wantFields []string
	}{
		{
			name: "valid inbox",
			data: store.MessageData{SenderID: 5, RecipientID: 9, Body: "hi", Type: store.TypeInbox},
		},
		{
			name: "valid alert without sender",
			data: store.MessageData{RecipientID: 3, Body: "system", Type: store.TypeAlert},
		},
		{
			name:       "missing recipient",
			data:       store.MessageData{SenderID: 5, Body: "hi", Type: store.TypeInbox},
			wantFields: []string{"recipient"},
		},
		{
			name:       "empty body",
			data:       store.MessageData{SenderID: 5, RecipientID: 9, Type: store.TypeInbox},
			wantFields: []string{"body"},
		},
		{
			name:       "whitespace body",
			data:       store.MessageData{SenderID: 5, RecipientID: 9, Body: " \n\t ", Type: store.TypeInbox},
			wantFields: []string{"body"},
		},
		{
			name:       "missing recipient and body",
			data:       store.MessageData{Type: store.TypeInvitation},
			wantFields: []string{"recipient", "body"},
		},
		{
			name:       "negative sender",
			data:       store.MessageData{SenderID: -1, RecipientID: 9, Body: "hi", Type: store.TypeInbox},
			wantFields: []string{"sender"},
		},
		{
			name:       "unknown type",
			data:       store.MessageData{RecipientID: 9, Body: "hi", Type: "dm"},
			wantFields: []string{"type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageData(tt.data, DefaultLimits())
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidMessage) {
				t.Fatalf("expected ErrInvalidMessage, got %v", err)
			}
			if !IsValidationError(err) {
				t.Errorf("expected a *ValidationError in %v", err)
			}
			got := ValidationFields(err)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("expected fields %v, got %v", tt.wantFields, got)
			}
		})
	}
}

func TestValidateBody(t *testing.T) {
	limits := MessageLimits{MaxBodySize: 8}

	if err := ValidateBody("hello", limits); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateBody(strings.Repeat("a", 9), limits)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", err)
	}
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}

	if err := ValidateBody("a\x00b", limits); !IsValidationError(err) {
		t.Errorf("expected validation error for null byte, got %v", err)
	}
	if err := ValidateBody("\xff\xfe", limits); !IsValidationError(err) {
		t.Errorf("expected validation error for invalid utf-8, got %v", err)
	}
}
