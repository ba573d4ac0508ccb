package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/envutil"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/repos"
	"github.com/yungbote/docchat-backend/internal/retrieval"
)

const (
	DefaultHistoryLimit      = 6
	DefaultHistoryCharBudget = 2000
	DefaultModelTimeout      = 45 * time.Second
)

type Generator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type AnswerRequest struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	Message    string
}

// Citation ties an answer back to the chunk span it came from.
type Citation struct {
	Source      int       `json:"source"`
	ChunkID     uuid.UUID `json:"chunk_id"`
	DocumentID  uuid.UUID `json:"document_id"`
	Ordinal     int       `json:"ordinal"`
	Page        int       `json:"page,omitempty"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Score       float64   `json:"score"`
}

type Answer struct {
	Text      string
	Blocks    []Block
	Citations []Citation
	Degraded  bool
	TurnID    uuid.UUID
}

// Orchestrator answers a question about one document. Model failure never
// surfaces as an error: the caller gets a degraded Answer instead. The error
// return is reserved for precondition failures from retrieval.
type Orchestrator interface {
	Answer(ctx context.Context, req AnswerRequest) (*Answer, error)
}

type orchestrator struct {
	retriever    retrieval.Retriever
	generator    Generator
	turns        repos.ConversationRepo
	prompts      PromptConfig
	historyLimit int
	historyChars int
	modelTimeout time.Duration
	topK         int
	log          *logger.Logger
}

func NewOrchestrator(
	ret retrieval.Retriever,
	gen Generator,
	turns repos.ConversationRepo,
	prompts PromptConfig,
	baseLog *logger.Logger,
) (Orchestrator, error) {
	if ret == nil || gen == nil || turns == nil {
		return nil, fmt.Errorf("orchestrator dependencies missing")
	}
	if strings.TrimSpace(prompts.System) == "" {
		prompts = DefaultPromptConfig()
	}
	return &orchestrator{
		retriever:    ret,
		generator:    gen,
		turns:        turns,
		prompts:      prompts,
		historyLimit: envutil.Int("CHAT_HISTORY_LIMIT", DefaultHistoryLimit),
		historyChars: envutil.Int("CHAT_HISTORY_CHAR_BUDGET", DefaultHistoryCharBudget),
		modelTimeout: envutil.DurationSeconds("CHAT_MODEL_TIMEOUT_SECONDS", DefaultModelTimeout),
		topK:         envutil.Int("CHAT_TOP_K", retrieval.DefaultTopK),
		log:          baseLog.With("service", "ChatOrchestrator"),
	}, nil
}

func (o *orchestrator) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	query := strings.TrimSpace(req.Message)
	if query == "" {
		return nil, fmt.Errorf("message required")
	}

	res, err := o.retriever.Retrieve(ctx, req.DocumentID, query, o.topK)
	if err != nil {
		return nil, err
	}

	history, err := o.turns.ListRecent(ctx, nil, req.DocumentID, req.UserID, o.historyLimit)
	if err != nil {
		o.log.Warn("Failed to load conversation history", "document_id", req.DocumentID, "error", err)
		history = nil
	}

	if _, err := o.turns.Append(ctx, nil, &domain.ConversationTurn{
		DocumentID: req.DocumentID,
		UserID:     req.UserID,
		Role:       domain.TurnRoleUser,
		Text:       query,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	userPrompt := o.buildUserPrompt(query, res, history)

	answer := o.generate(ctx, userPrompt, res)

	turn, err := o.persistAssistantTurn(ctx, req, answer)
	if err != nil {
		return nil, err
	}
	answer.TurnID = turn.ID
	return answer, nil
}

func (o *orchestrator) generate(ctx context.Context, userPrompt string, res *retrieval.Result) *Answer {
	callCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	defer cancel()

	callStart := time.Now()
	raw, err := o.generator.GenerateText(callCtx, o.prompts.System, userPrompt)
	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.Current().ObserveLLM("chat", status, time.Since(callStart))
	if err != nil {
		o.log.Warn("Model call failed, serving fallback", "error", err)
		fallback := o.prompts.FallbackMessage
		return &Answer{
			Text:     fallback,
			Blocks:   []Block{{Type: BlockParagraph, Content: fallback}},
			Degraded: true,
		}
	}

	return &Answer{
		Text:      raw,
		Blocks:    shapeBlocks(raw),
		Citations: citationsFor(raw, res),
	}
}

// buildUserPrompt lays out numbered source excerpts, recent history and the
// question. History drops oldest-first when over the character budget.
func (o *orchestrator) buildUserPrompt(query string, res *retrieval.Result, history []*domain.ConversationTurn) string {
	var b strings.Builder

	if len(res.Chunks) > 0 {
		b.WriteString("Source excerpts:\n\n")
		for i, cc := range res.Chunks {
			fmt.Fprintf(&b, "[Source %d]\n%s\n\n", i+1, strings.TrimSpace(cc.Chunk.Text))
		}
	} else {
		b.WriteString("No relevant excerpts were found in the document.\n\n")
	}

	if trimmed := o.trimHistory(history); len(trimmed) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range trimmed {
			role := "User"
			if t.Role == domain.TurnRoleAssistant {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(t.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

func (o *orchestrator) trimHistory(history []*domain.ConversationTurn) []*domain.ConversationTurn {
	total := 0
	for _, t := range history {
		total += len(t.Text)
	}
	for len(history) > 0 && total > o.historyChars {
		total -= len(history[0].Text)
		history = history[1:]
	}
	return history
}

// citationsFor maps the [Source N] markers the model actually used back to
// the chunks behind them. Markers pointing past the excerpt list are ignored.
func citationsFor(text string, res *retrieval.Result) []Citation {
	var out []Citation
	for _, n := range referencedSources(text) {
		if n > len(res.Chunks) {
			continue
		}
		cc := res.Chunks[n-1]
		out = append(out, Citation{
			Source:      n,
			ChunkID:     cc.Chunk.ID,
			DocumentID:  cc.Chunk.DocumentID,
			Ordinal:     cc.Chunk.Ordinal,
			Page:        cc.Chunk.Page,
			StartOffset: cc.Chunk.StartOffset,
			EndOffset:   cc.Chunk.EndOffset,
			Score:       cc.Score,
		})
	}
	return out
}

func (o *orchestrator) persistAssistantTurn(ctx context.Context, req AnswerRequest, answer *Answer) (*domain.ConversationTurn, error) {
	blocksJSON, err := json.Marshal(answer.Blocks)
	if err != nil {
		return nil, err
	}
	citationsJSON, err := json.Marshal(answer.Citations)
	if err != nil {
		return nil, err
	}
	return o.turns.Append(ctx, nil, &domain.ConversationTurn{
		DocumentID:   req.DocumentID,
		UserID:       req.UserID,
		Role:         domain.TurnRoleAssistant,
		Text:         answer.Text,
		AnswerBlocks: datatypes.JSON(blocksJSON),
		Citations:    datatypes.JSON(citationsJSON),
		Degraded:     answer.Degraded,
		CreatedAt:    time.Now().UTC(),
	})
}
