package event

import (
	"log/slog"
)

type SourceType int

const (
	SourceSystem SourceType = iota
	SourceActionBar
)

func (st SourceType) String() string {
	switch st {
	case SourceSystem:
		return "System"
	case SourceActionBar:
		return "ActionBar"
	default:
		return "Unknown"
	}
}

type ChatEvent struct {
	Message string
	Source  SourceType
}

// ChatEventHandler logs chat events.
func ChatEventHandler(event any) {
	chatEvent, ok := event.(*ChatEvent)
	if !ok {
		slog.Error("Invalid event type for ChatEventHandler")
		return
	}
	slog.Info("Chat event", "message", chatEvent.Message, "source", chatEvent.Source.String())
}

func NewChatEvent(message string, overlay bool) *ChatEvent {
	source := SourceSystem
	if overlay {
		source = SourceActionBar
	}
	return &ChatEvent{
		Message: message,
		Source:  source,
	}
}
