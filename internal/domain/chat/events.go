package chat

// Channel and event vocabulary for the pub/sub bus. One broadcast topic per
// entity of interest: a user's inbox and a conversation room.

const (
	EventNew    = "new"
	EventUpdate = "update"
)

// UserChannel is the per-user inbox channel carrying conversation-level
// notifications.
func UserChannel(userID string) string {
	return "user:" + userID + ":conversations"
}

// ConversationChannel is the per-conversation room channel carrying message
// events for subscribers currently viewing that conversation.
func ConversationChannel(id ConversationID) string {
	return "conversation:" + string(id)
}
