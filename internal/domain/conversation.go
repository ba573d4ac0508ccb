package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

// ConversationTurn is one message in a document-scoped conversation.
// Turns are append-only; AnswerBlocks and Citations are populated on
// assistant turns only.
type ConversationTurn struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"document_id"`
	Document     *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Role         string         `gorm:"column:role;not null" json:"role"`
	Text         string         `gorm:"column:text;not null" json:"text"`
	AnswerBlocks datatypes.JSON `gorm:"type:jsonb;column:answer_blocks" json:"answer_blocks,omitempty"`
	Citations    datatypes.JSON `gorm:"type:jsonb;column:citations" json:"citations,omitempty"`
	Degraded     bool           `gorm:"column:degraded;not null;default:false" json:"degraded"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (ConversationTurn) TableName() string { return "conversation_turn" }
