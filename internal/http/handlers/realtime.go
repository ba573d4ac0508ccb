package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/http/response"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/realtime"
	"github.com/yungbote/docchat-backend/internal/repos"
)

type RealtimeHandler struct {
	log   *logger.Logger
	hub   *realtime.SSEHub
	users repos.UserRepo
	docs  repos.DocumentRepo
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, users repos.UserRepo, docs repos.DocumentRepo) *RealtimeHandler {
	return &RealtimeHandler{
		log:   log.With("handler", "RealtimeHandler"),
		hub:   hub,
		users: users,
		docs:  docs,
	}
}

// GET /api/sse/stream?document_id=...
// Streams ingestion status transitions. With no document_id the stream
// subscribes to every document the caller owns.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	user, ok := resolveUser(c, h.users)
	if !ok {
		return
	}

	var channels []string
	if raw := c.Query("document_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
			return
		}
		doc, err := h.docs.GetByID(c.Request.Context(), nil, id)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		if doc.UserID != user.ID {
			respondDomainError(c, domain.ErrNoActiveDocument)
			return
		}
		channels = append(channels, realtime.DocumentChannel(id))
	} else {
		docs, err := h.docs.ListByUserID(c.Request.Context(), nil, user.ID)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "document_list_failed", err)
			return
		}
		for _, d := range docs {
			channels = append(channels, realtime.DocumentChannel(d.ID))
		}
	}

	client := h.hub.NewSSEClient(user.ID)
	for _, ch := range channels {
		h.hub.AddChannel(client, ch)
	}
	h.log.Info("SSE stream open", "user_id", user.ID, "channels", len(channels))
	observability.Current().SSEClientsInc()
	defer observability.Current().SSEClientsDec()

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}
