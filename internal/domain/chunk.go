package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentChunk is one contiguous slice of a document's extracted text.
// Ordinal preserves reading order; StartOffset/EndOffset index into the
// full extracted text. VectorID ties the row to its point in the index.
type DocumentChunk struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_chunk_doc_ordinal,unique" json:"document_id"`
	Document    *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	Ordinal     int            `gorm:"column:ordinal;not null;index:idx_chunk_doc_ordinal,unique" json:"ordinal"`
	Text        string         `gorm:"column:text;not null" json:"text"`
	Page        int            `gorm:"column:page" json:"page"`
	StartOffset int            `gorm:"column:start_offset;not null" json:"start_offset"`
	EndOffset   int            `gorm:"column:end_offset;not null" json:"end_offset"`
	VectorID    string         `gorm:"column:vector_id;not null;index" json:"vector_id"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DocumentChunk) TableName() string { return "document_chunk" }

// VectorIDFor is the canonical point id for a chunk: "<documentID>_<ordinal>".
func VectorIDFor(documentID uuid.UUID, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}
