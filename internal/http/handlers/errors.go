package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/http/response"
)

// respondDomainError maps the domain error taxonomy onto HTTP statuses with
// stable machine-readable codes.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoActiveDocument):
		response.RespondError(c, http.StatusNotFound, "document_not_found", err)
	case errors.Is(err, domain.ErrDocumentNotReady):
		response.RespondError(c, http.StatusConflict, "document_not_ready", err)
	case errors.Is(err, domain.ErrIngestionInProgress):
		response.RespondError(c, http.StatusConflict, "ingestion_in_progress", err)
	case errors.Is(err, domain.ErrUnparsableDocument):
		response.RespondError(c, http.StatusUnprocessableEntity, "unparsable_document", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		response.RespondError(c, http.StatusServiceUnavailable, "embedding_unavailable", err)
	case errors.Is(err, domain.ErrIndexUnavailable):
		response.RespondError(c, http.StatusServiceUnavailable, "index_unavailable", err)
	default:
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
