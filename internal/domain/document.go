package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document lifecycle states. A document answers queries only when ready.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	OriginalName    string         `gorm:"column:original_name;not null" json:"original_name"`
	MimeType        string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes       int64          `gorm:"column:size_bytes" json:"size_bytes"`
	Status          string         `gorm:"column:status;not null;default:'pending'" json:"status"`
	StatusReason    string         `gorm:"column:status_reason" json:"status_reason,omitempty"`
	VectorNamespace string         `gorm:"column:vector_namespace;not null" json:"vector_namespace"`
	PageCount       int            `gorm:"column:page_count" json:"page_count"`
	ChunkCount      int            `gorm:"column:chunk_count" json:"chunk_count"`
	IngestedAt      *time.Time     `gorm:"column:ingested_at" json:"ingested_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

// NamespaceFor derives the vector index namespace for a document. One
// namespace per document keeps deletes and queries scoped without filters
// on the hot path.
func NamespaceFor(documentID uuid.UUID) string {
	return fmt.Sprintf("doc:%s", documentID)
}
