package bus

import (
	"context"

	"github.com/yungbote/docchat-backend/internal/realtime"
)

// Bus relays SSE messages across backend instances so a client connected to
// one instance still sees transitions published by another.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
