package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

type ChunkRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chunks []*domain.DocumentChunk) ([]*domain.DocumentChunk, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*domain.DocumentChunk, error)
	GetByVectorIDs(ctx context.Context, tx *gorm.DB, vectorIDs []string) ([]*domain.DocumentChunk, error)
	DeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	repoLog := baseLog.With("repo", "ChunkRepo")
	return &chunkRepo{db: db, log: repoLog}
}

func (r *chunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*domain.DocumentChunk) ([]*domain.DocumentChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(chunks) == 0 {
		return []*domain.DocumentChunk{}, nil
	}
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}

	// Keep batches small because Text is large
	const batchSize = 100

	if err := transaction.WithContext(ctx).CreateInBatches(chunks, batchSize).Error; err != nil {
		// A duplicate (document_id, ordinal) means another ingestion run
		// already wrote chunks for this document.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: chunk rows already exist", domain.ErrIngestionInProgress)
		}
		return nil, err
	}
	return chunks, nil
}

func (r *chunkRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*domain.DocumentChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.DocumentChunk
	if err := transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("ordinal ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) GetByVectorIDs(ctx context.Context, tx *gorm.DB, vectorIDs []string) ([]*domain.DocumentChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.DocumentChunk
	if len(vectorIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("vector_id IN ?", vectorIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) DeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&domain.DocumentChunk{}).Error
}
