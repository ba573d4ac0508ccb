package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

type UserRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.User, error)
	// GetOrCreateByExternalRef resolves a caller-supplied identity to a
	// local user row, creating it on first sight.
	GetOrCreateByExternalRef(ctx context.Context, tx *gorm.DB, externalRef string) (*domain.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var user domain.User
	if err := transaction.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetOrCreateByExternalRef(ctx context.Context, tx *gorm.DB, externalRef string) (*domain.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	user := &domain.User{ID: uuid.New(), ExternalRef: externalRef}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_ref"}},
			DoNothing: true,
		}).
		Create(user).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	var out domain.User
	if err := transaction.WithContext(ctx).First(&out, "external_ref = ?", externalRef).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
