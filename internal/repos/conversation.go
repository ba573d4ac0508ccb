package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

type ConversationRepo interface {
	Append(ctx context.Context, tx *gorm.DB, turn *domain.ConversationTurn) (*domain.ConversationTurn, error)
	// ListRecent returns at most limit turns for the document and user,
	// oldest first, taken from the tail of the conversation.
	ListRecent(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID, limit int) ([]*domain.ConversationTurn, error)
	ListByDocumentID(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) ([]*domain.ConversationTurn, error)
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	repoLog := baseLog.With("repo", "ConversationRepo")
	return &conversationRepo{db: db, log: repoLog}
}

func (r *conversationRepo) Append(ctx context.Context, tx *gorm.DB, turn *domain.ConversationTurn) (*domain.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(turn).Error; err != nil {
		return nil, err
	}
	return turn, nil
}

func (r *conversationRepo) ListRecent(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID, limit int) ([]*domain.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		return []*domain.ConversationTurn{}, nil
	}
	var tail []*domain.ConversationTurn
	if err := transaction.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tail).Error; err != nil {
		return nil, err
	}
	// Flip back to chronological order.
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return tail, nil
}

func (r *conversationRepo) ListByDocumentID(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) ([]*domain.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var turns []*domain.ConversationTurn
	if err := transaction.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Order("created_at ASC").
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}
