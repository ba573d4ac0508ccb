package realtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

// MessagePublisher is the cross-instance relay. The hub itself subscribes to
// it via a forwarder, so a published message reaches every instance's local
// clients exactly once.
type MessagePublisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// StatusFanout publishes document lifecycle transitions. With a bus attached
// it publishes remotely and lets the forwarder deliver locally; without one
// it broadcasts straight into the hub.
type StatusFanout struct {
	hub *SSEHub
	bus MessagePublisher
	log *logger.Logger
}

func NewStatusFanout(hub *SSEHub, bus MessagePublisher, log *logger.Logger) *StatusFanout {
	return &StatusFanout{
		hub: hub,
		bus: bus,
		log: log.With("component", "StatusFanout"),
	}
}

func (f *StatusFanout) PublishStatus(documentID uuid.UUID, status string, reason string) {
	msg := SSEMessage{
		Channel: DocumentChannel(documentID),
		Event:   SSEEventDocumentStatus,
		Data: DocumentStatusData{
			DocumentID: documentID,
			Status:     status,
			Reason:     reason,
		},
	}
	if f.bus != nil {
		err := f.bus.Publish(context.Background(), msg)
		if err == nil {
			return
		}
		f.log.Warn("Bus publish failed, broadcasting locally", "document_id", documentID, "error", err)
	}
	f.hub.Broadcast(msg)
}
