package gateway

// EventKind is the closed set of broker-originated events this gateway
// routes. Adding a kind means touching the router's dispatch switch,
// which keeps its coverage visible at compile time instead of hiding
// behind string matching.
type EventKind int

const (
	EventChatUpdate EventKind = iota
	EventChatNewMessage
	EventChatMessageRead
	EventChatTyping
	EventUserStatus
	EventLikeNew
	EventMatchNew
	EventComplaintUpdate
	EventComplaintStatusChanged
)

func (k EventKind) String() string {
	switch k {
	case EventChatUpdate:
		return "chat:update"
	case EventChatNewMessage:
		return "chat:newMessage"
	case EventChatMessageRead:
		return "chat:messageRead"
	case EventChatTyping:
		return "chat:typing"
	case EventUserStatus:
		return "user:status"
	case EventLikeNew:
		return "like:new"
	case EventMatchNew:
		return "match:new"
	case EventComplaintUpdate:
		return "complaint:update"
	case EventComplaintStatusChanged:
		return "complaint:statusChanged"
	}
	return "unknown"
}

// Channels is the full broker subscription list, in the order the
// subscriber attaches them.
func Channels() []string {
	kinds := []EventKind{
		EventChatUpdate,
		EventChatNewMessage,
		EventChatMessageRead,
		EventChatTyping,
		EventUserStatus,
		EventLikeNew,
		EventMatchNew,
		EventComplaintUpdate,
		EventComplaintStatusChanged,
	}
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}

// KindForChannel resolves a broker channel name back to its kind.
func KindForChannel(channel string) (EventKind, bool) {
	switch channel {
	case "chat:update":
		return EventChatUpdate, true
	case "chat:newMessage":
		return EventChatNewMessage, true
	case "chat:messageRead":
		return EventChatMessageRead, true
	case "chat:typing":
		return EventChatTyping, true
	case "user:status":
		return EventUserStatus, true
	case "like:new":
		return EventLikeNew, true
	case "match:new":
		return EventMatchNew, true
	case "complaint:update":
		return EventComplaintUpdate, true
	case "complaint:statusChanged":
		return EventComplaintStatusChanged, true
	}
	return 0, false
}
