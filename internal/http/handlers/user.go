package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/http/response"
	"github.com/yungbote/docchat-backend/internal/repos"
)

// resolveUser maps the caller-supplied X-User-ID reference to a local user
// row, creating it on first sight. Validating the reference itself is the
// upstream gateway's job. Writes a 401 and returns false when absent.
func resolveUser(c *gin.Context, users repos.UserRepo) (*domain.User, bool) {
	ref := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if ref == "" {
		response.RespondError(c, http.StatusUnauthorized, "missing_user", nil)
		return nil, false
	}
	user, err := users.GetOrCreateByExternalRef(c.Request.Context(), nil, ref)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "user_lookup_failed", err)
		return nil, false
	}
	return user, true
}

// pathDocumentID parses the :id route param. Writes a 400 and returns false
// when it is not a UUID.
func pathDocumentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return uuid.Nil, false
	}
	return id, true
}
