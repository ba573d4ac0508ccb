package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/chat"
	"github.com/yungbote/docchat-backend/internal/ingestion/chunker"
	"github.com/yungbote/docchat-backend/internal/ingestion/pipeline"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/openai"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
	"github.com/yungbote/docchat-backend/internal/realtime"
	"github.com/yungbote/docchat-backend/internal/retrieval"
	"github.com/yungbote/docchat-backend/internal/storage"
)

type Services struct {
	OpenAI    openai.Client
	Store     pinecone.VectorStore
	Blobs     storage.BlobStore
	Pipeline  pipeline.Service
	Retriever retrieval.Retriever
	Chat      chat.Orchestrator
	Fanout    *realtime.StatusFanout
}

func wireServices(
	lifecycle context.Context,
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	r Repos,
	fanout *realtime.StatusFanout,
) (Services, error) {
	ai, err := openai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}

	store, err := resolveVectorStore(log, cfg)
	if err != nil {
		return Services{}, err
	}

	blobs, err := storage.NewLocalStore(log)
	if err != nil {
		return Services{}, fmt.Errorf("init blob store: %w", err)
	}

	pipe, err := pipeline.NewService(lifecycle, db, r.Documents, r.Chunks, ai, store, chunker.New(), fanout, log)
	if err != nil {
		return Services{}, fmt.Errorf("init ingestion pipeline: %w", err)
	}

	ret, err := retrieval.NewRetriever(r.Documents, r.Chunks, ai, store, log)
	if err != nil {
		return Services{}, fmt.Errorf("init retriever: %w", err)
	}

	prompts, err := chat.LoadPromptConfig()
	if err != nil {
		return Services{}, fmt.Errorf("load prompt config: %w", err)
	}
	orch, err := chat.NewOrchestrator(ret, ai, r.Turns, prompts, log)
	if err != nil {
		return Services{}, fmt.Errorf("init chat orchestrator: %w", err)
	}

	return Services{
		OpenAI:    ai,
		Store:     store,
		Blobs:     blobs,
		Pipeline:  pipe,
		Retriever: ret,
		Chat:      orch,
		Fanout:    fanout,
	}, nil
}
