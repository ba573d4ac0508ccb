package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/repos"
)

type Repos struct {
	Users     repos.UserRepo
	Documents repos.DocumentRepo
	Chunks    repos.ChunkRepo
	Turns     repos.ConversationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Users:     repos.NewUserRepo(db, log),
		Documents: repos.NewDocumentRepo(db, log),
		Chunks:    repos.NewChunkRepo(db, log),
		Turns:     repos.NewConversationRepo(db, log),
	}
}
