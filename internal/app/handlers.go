package app

import (
	httpH "github.com/yungbote/docchat-backend/internal/http/handlers"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Document *httpH.DocumentHandler
	Chat     *httpH.ChatHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, r Repos, s Services, hub *realtime.SSEHub) Handlers {
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Document: httpH.NewDocumentHandler(log, r.Users, r.Documents, r.Chunks, s.Pipeline, s.Blobs, s.Store),
		Chat:     httpH.NewChatHandler(log, r.Users, r.Documents, r.Turns, s.Chat),
		Realtime: httpH.NewRealtimeHandler(log, hub, r.Users, r.Documents),
	}
}
