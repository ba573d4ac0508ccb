package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docchat-backend/internal/chat"
	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/http/response"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/repos"
)

type ChatHandler struct {
	log   *logger.Logger
	users repos.UserRepo
	docs  repos.DocumentRepo
	turns repos.ConversationRepo
	orch  chat.Orchestrator
}

func NewChatHandler(
	log *logger.Logger,
	users repos.UserRepo,
	docs repos.DocumentRepo,
	turns repos.ConversationRepo,
	orch chat.Orchestrator,
) *ChatHandler {
	return &ChatHandler{
		log:   log.With("handler", "ChatHandler"),
		users: users,
		docs:  docs,
		turns: turns,
		orch:  orch,
	}
}

type askRequest struct {
	Message string `json:"message"`
}

// POST /api/documents/:id/chat
func (h *ChatHandler) Ask(c *gin.Context) {
	user, ok := resolveUser(c, h.users)
	if !ok {
		return
	}
	id, ok := pathDocumentID(c)
	if !ok {
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_message", nil)
		return
	}

	// Ownership gate before any retrieval or model work.
	doc, err := h.docs.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if doc.UserID != user.ID {
		respondDomainError(c, domain.ErrNoActiveDocument)
		return
	}

	ans, err := h.orch.Answer(c.Request.Context(), chat.AnswerRequest{
		DocumentID: id,
		UserID:     user.ID,
		Message:    req.Message,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	observability.Current().IncChatAnswer(ans.Degraded)

	response.RespondOK(c, gin.H{
		"answer":        ans.Text,
		"answer_blocks": ans.Blocks,
		"citations":     ans.Citations,
		"degraded":      ans.Degraded,
		"turn_id":       ans.TurnID,
	})
}

// GET /api/documents/:id/turns
func (h *ChatHandler) ListTurns(c *gin.Context) {
	user, ok := resolveUser(c, h.users)
	if !ok {
		return
	}
	id, ok := pathDocumentID(c)
	if !ok {
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

	turns, err := h.turns.ListByDocumentID(c.Request.Context(), nil, id, user.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "turn_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"turns": turns})
}
