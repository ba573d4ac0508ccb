package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/http/response"
	"github.com/yungbote/docchat-backend/internal/ingestion/pipeline"
	"github.com/yungbote/docchat-backend/internal/platform/envutil"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
	"github.com/yungbote/docchat-backend/internal/repos"
	"github.com/yungbote/docchat-backend/internal/storage"
)

const defaultMaxUploadBytes = 32 << 20

type DocumentHandler struct {
	log       *logger.Logger
	users     repos.UserRepo
	docs      repos.DocumentRepo
	chunks    repos.ChunkRepo
	ingest    pipeline.Service
	blobs     storage.BlobStore
	store     pinecone.VectorStore
	maxUpload int64
}

func NewDocumentHandler(
	log *logger.Logger,
	users repos.UserRepo,
	docs repos.DocumentRepo,
	chunks repos.ChunkRepo,
	ingest pipeline.Service,
	blobs storage.BlobStore,
	store pinecone.VectorStore,
) *DocumentHandler {
	return &DocumentHandler{
		log:       log.With("handler", "DocumentHandler"),
		users:     users,
		docs:      docs,
		chunks:    chunks,
		ingest:    ingest,
		blobs:     blobs,
		store:     store,
		maxUpload: int64(envutil.Int("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
	}
}

// POST /api/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := resolveUser(c, h.users)
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if fh.Size > h.maxUpload {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("file exceeds %d bytes", h.maxUpload))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	_ = f.Close()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("file exceeds %d bytes", h.maxUpload))
		return
	}
	if len(data) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_file", nil)
		return
	}

	mimeType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = http.DetectContentType(data[:min(len(data), 512)])
	}

	doc, err := h.docs.Create(c.Request.Context(), nil, &domain.Document{
		UserID:       user.ID,
		OriginalName: fh.Filename,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		Status:       domain.DocumentStatusPending,
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_create_failed", err)
		return
	}

	if err := h.blobs.Save(doc.ID, data); err != nil {
		// Re-ingest will need the bytes back; without them the upload is
		// not durable, so surface the failure now.
		h.log.Error("Failed to persist upload", "document_id", doc.ID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "upload_persist_failed", err)
		return
	}

	h.ingest.IngestAsync(c.Request.Context(), doc.ID, data)
	h.log.Info("Document accepted", "document_id", doc.ID, "name", doc.OriginalName, "bytes", len(data))
	response.RespondAccepted(c, gin.H{"document": doc})
}

// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	user, ok := resolveUser(c, h.users)
	if !ok {
		return
	}
	docs, err := h.docs.ListByUserID(c.Request.Context(), nil, user.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"documents": docs})
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// POST /api/documents/:id/reingest
func (h *DocumentHandler) Reingest(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	switch doc.Status {
	case domain.DocumentStatusFailed, domain.DocumentStatusPending:
	case domain.DocumentStatusProcessing:
		respondDomainError(c, domain.ErrIngestionInProgress)
		return
	default:
		response.RespondError(c, http.StatusConflict, "document_not_failed",
			fmt.Errorf("document is %s; only failed documents can be re-ingested", doc.Status))
		return
	}

	data, err := h.blobs.Load(doc.ID)
	if err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, "original_upload_missing", err)
		return
	}
	h.ingest.IngestAsync(c.Request.Context(), doc.ID, data)
	response.RespondAccepted(c, gin.H{"document": doc})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.docs.Delete(ctx, nil, doc.ID); err != nil {
		respondDomainError(c, err)
		return
	}
	if err := h.chunks.DeleteByDocumentID(ctx, nil, doc.ID); err != nil {
		h.log.Warn("Chunk cleanup failed", "document_id", doc.ID, "error", err)
	}
	// Vector and blob cleanup are best effort; the soft-deleted row already
	// hides the document from every read path.
	if err := h.store.DeleteNamespace(ctx, domain.NamespaceFor(doc.ID)); err != nil {
		h.log.Warn("Namespace cleanup failed", "document_id", doc.ID, "error", err)
	}
	if err := h.blobs.Delete(doc.ID); err != nil {
		h.log.Warn("Blob cleanup failed", "document_id", doc.ID, "error", err)
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// ownedDocument loads the :id document and enforces ownership. A foreign
// document is indistinguishable from a missing one.
func (h *DocumentHandler) ownedDocument(c *gin.Context) (*domain.Document, bool) {
	user, ok := resolveUser(c, h.users)
	if !ok {
		return nil, false
	}
	id, ok := pathDocumentID(c)
	if !ok {
		return nil, false
	}
	doc, err := h.docs.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		respondDomainError(c, err)
		return nil, false
	}
	if doc.UserID != user.ID {
		respondDomainError(c, domain.ErrNoActiveDocument)
		return nil, false
	}
	return doc, true
}
