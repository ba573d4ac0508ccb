package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/ingestion/chunker"
	"github.com/yungbote/docchat-backend/internal/ingestion/extractor"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
	"github.com/yungbote/docchat-backend/internal/repos"
)

// metadataTextLimit bounds the text mirrored into vector metadata. The chunk
// row is the source of truth; the mirror is only a debugging aid.
const metadataTextLimit = 1000

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// StatusPublisher receives document lifecycle transitions for fanout to
// subscribers. Implementations must not block.
type StatusPublisher interface {
	PublishStatus(documentID uuid.UUID, status string, reason string)
}

type Service interface {
	// Ingest runs the full pipeline for one document synchronously.
	Ingest(ctx context.Context, documentID uuid.UUID, data []byte) error
	// IngestAsync detaches from the caller's context and runs Ingest in the
	// background; failures are logged and recorded on the document row.
	IngestAsync(ctx context.Context, documentID uuid.UUID, data []byte)
}

type service struct {
	lifecycle context.Context

	db       *gorm.DB
	docs     repos.DocumentRepo
	chunks   repos.ChunkRepo
	embedder Embedder
	store    pinecone.VectorStore
	splitter *chunker.Chunker
	events   StatusPublisher
	log      *logger.Logger
}

func NewService(
	lifecycle context.Context,
	db *gorm.DB,
	docs repos.DocumentRepo,
	chunks repos.ChunkRepo,
	embedder Embedder,
	store pinecone.VectorStore,
	splitter *chunker.Chunker,
	events StatusPublisher,
	baseLog *logger.Logger,
) (Service, error) {
	if db == nil || docs == nil || chunks == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("pipeline dependencies missing")
	}
	if lifecycle == nil {
		lifecycle = context.Background()
	}
	if splitter == nil {
		splitter = chunker.New()
	}
	return &service{
		lifecycle: lifecycle,
		db:        db,
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
		store:     store,
		splitter:  splitter,
		events:    events,
		log:       baseLog.With("service", "IngestionPipeline"),
	}, nil
}

func (s *service) IngestAsync(ctx context.Context, documentID uuid.UUID, data []byte) {
	// Detached from the request so a client disconnect does not abort the
	// run, but still canceled when the process lifecycle ends.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.lifecycle, cancel)
	go func() {
		defer stop()
		defer cancel()
		if err := s.Ingest(runCtx, documentID, data); err != nil {
			s.log.Error("Ingestion failed", "document_id", documentID, "error", err)
		}
	}()
}

func (s *service) Ingest(ctx context.Context, documentID uuid.UUID, data []byte) (err error) {
	runStart := time.Now()
	defer func() { observeStage("run", runStart, err) }()

	if err := s.docs.ClaimForIngestion(ctx, nil, documentID); err != nil {
		return err
	}
	doc, err := s.docs.GetByID(ctx, nil, documentID)
	if err != nil {
		return err
	}
	s.publish(documentID, domain.DocumentStatusProcessing, "")
	s.log.Info("Ingestion started", "document_id", documentID, "name", doc.OriginalName, "bytes", len(data))

	extractStart := time.Now()
	ex, err := extractor.Extract(doc.OriginalName, doc.MimeType, data)
	observeStage("extract", extractStart, err)
	if err != nil {
		return s.fail(ctx, documentID, err)
	}
	for _, w := range ex.Warnings {
		s.log.Warn("Extraction warning", "document_id", documentID, "warning", w)
	}

	pieces := s.splitter.Split(ex.Text)
	if len(pieces) == 0 {
		return s.fail(ctx, documentID, fmt.Errorf("%w: extracted text produced no chunks", domain.ErrUnparsableDocument))
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	embedStart := time.Now()
	embeddings, err := s.embedder.Embed(ctx, texts)
	observeStage("embed", embedStart, err)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err))
	}
	if len(embeddings) != len(pieces) {
		return s.fail(ctx, documentID, fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrEmbeddingUnavailable, len(embeddings), len(pieces)))
	}

	rows, vectors := s.buildChunks(doc, ex, pieces, embeddings)

	// Chunk rows and index vectors commit together or not at all: the vector
	// upsert runs inside the transaction so its failure rolls the rows back.
	persistStart := time.Now()
	var upserted bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.chunks.DeleteByDocumentID(ctx, tx, documentID); err != nil {
			return err
		}
		if _, err := s.chunks.Create(ctx, tx, rows); err != nil {
			return err
		}
		if err := s.store.DeleteNamespace(ctx, doc.VectorNamespace); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		if err := s.store.Upsert(ctx, doc.VectorNamespace, vectors); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		upserted = true
		return nil
	})
	observeStage("persist", persistStart, txErr)
	if txErr != nil {
		if upserted {
			// Rows rolled back after vectors landed; remove the orphans.
			if cleanupErr := s.store.DeleteNamespace(context.WithoutCancel(ctx), doc.VectorNamespace); cleanupErr != nil {
				s.log.Warn("Vector cleanup after rollback failed", "document_id", documentID, "error", cleanupErr)
			}
		}
		return s.fail(ctx, documentID, txErr)
	}

	pageCount := len(ex.Pages)
	if err := s.docs.MarkReady(ctx, nil, documentID, pageCount, len(rows)); err != nil {
		return err
	}
	s.publish(documentID, domain.DocumentStatusReady, "")
	s.log.Info("Ingestion finished", "document_id", documentID, "chunks", len(rows), "pages", pageCount)
	return nil
}

func (s *service) buildChunks(
	doc *domain.Document,
	ex *extractor.Extraction,
	pieces []chunker.Chunk,
	embeddings [][]float32,
) ([]*domain.DocumentChunk, []pinecone.Vector) {
	rows := make([]*domain.DocumentChunk, 0, len(pieces))
	vectors := make([]pinecone.Vector, 0, len(pieces))
	for i, p := range pieces {
		vectorID := domain.VectorIDFor(doc.ID, i)
		page := extractor.PageForOffset(ex.Pages, p.StartOffset)
		rows = append(rows, &domain.DocumentChunk{
			ID:          uuid.New(),
			DocumentID:  doc.ID,
			Ordinal:     i,
			Text:        p.Text,
			Page:        page,
			StartOffset: p.StartOffset,
			EndOffset:   p.EndOffset,
			VectorID:    vectorID,
		})
		vectors = append(vectors, pinecone.Vector{
			ID:     vectorID,
			Values: embeddings[i],
			Metadata: map[string]any{
				"document_id": doc.ID.String(),
				"ordinal":     i,
				"page":        page,
				"text":        truncate(p.Text, metadataTextLimit),
			},
		})
	}
	return rows, vectors
}

func (s *service) fail(ctx context.Context, documentID uuid.UUID, cause error) error {
	reason := failureReason(cause)
	if err := s.docs.MarkFailed(context.WithoutCancel(ctx), nil, documentID, reason); err != nil {
		s.log.Error("Failed to record ingestion failure", "document_id", documentID, "error", err)
	}
	s.publish(documentID, domain.DocumentStatusFailed, reason)
	return cause
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnparsableDocument):
		return domain.ErrUnparsableDocument.Error()
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return domain.ErrEmbeddingUnavailable.Error()
	case errors.Is(err, domain.ErrIndexUnavailable):
		return domain.ErrIndexUnavailable.Error()
	default:
		return "ingestion failed"
	}
}

func (s *service) publish(documentID uuid.UUID, status, reason string) {
	if s.events == nil {
		return
	}
	s.events.PublishStatus(documentID, status, reason)
}

func observeStage(stage string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.Current().ObserveIngestStage(stage, status, time.Since(start))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
