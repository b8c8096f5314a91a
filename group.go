package msgbox

import "fmt"

// GroupKey returns the conversation key for two participants.
// It is symmetric: GroupKey(a, b) == GroupKey(b, a).
// The larger id comes first: GroupKey(5, 9) == "9_5".
func GroupKey(a, b UserID) string {
	if a < b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ConversationGroupFor returns the group key of an inbox message between
// sender and recipient. It reports false when either participant is absent.
func ConversationGroupFor(sender, recipient UserID) (string, bool) {
	if !sender.Valid() || !recipient.Valid() {
		return "", false
	}
	return GroupKey(sender, recipient), true
}
