package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *domain.Document) (*domain.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Document, error)
	// ClaimForIngestion atomically moves a pending or failed document into
	// processing. Returns domain.ErrIngestionInProgress when another worker
	// holds the document, domain.ErrNoActiveDocument when it does not exist.
	ClaimForIngestion(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkReady(ctx context.Context, tx *gorm.DB, id uuid.UUID, pageCount, chunkCount int) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	repoLog := baseLog.With("repo", "DocumentRepo")
	return &documentRepo{db: db, log: repoLog}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *domain.Document) (*domain.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.VectorNamespace == "" {
		doc.VectorNamespace = domain.NamespaceFor(doc.ID)
	}
	if err := transaction.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var doc domain.Document
	if err := transaction.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoActiveDocument
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*domain.Document
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) ClaimForIngestion(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND status IN ?", id, []string{domain.DocumentStatusPending, domain.DocumentStatusFailed}).
		Updates(map[string]any{
			"status":        domain.DocumentStatusProcessing,
			"status_reason": "",
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the row is missing or another worker already claimed it.
		var count int64
		if err := transaction.WithContext(ctx).
			Model(&domain.Document{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNoActiveDocument
		}
		return domain.ErrIngestionInProgress
	}
	return nil
}

func (r *documentRepo) MarkReady(ctx context.Context, tx *gorm.DB, id uuid.UUID, pageCount, chunkCount int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.DocumentStatusReady,
			"page_count":  pageCount,
			"chunk_count": chunkCount,
			"ingested_at": &now,
			"updated_at":  now,
		}).Error
}

func (r *documentRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.DocumentStatusFailed,
			"status_reason": reason,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *documentRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).Delete(&domain.Document{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoActiveDocument
	}
	return nil
}
