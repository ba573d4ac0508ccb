package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/observability"
	"github.com/yungbote/docchat-backend/internal/platform/envutil"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
	"github.com/yungbote/docchat-backend/internal/repos"
)

const (
	DefaultTopK          = 5
	DefaultContextBudget = 6000
)

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ContextChunk pairs a resolved chunk row with its similarity score.
type ContextChunk struct {
	Chunk *domain.DocumentChunk
	Score float64
}

type Result struct {
	Document *domain.Document
	Chunks   []ContextChunk
}

type Retriever interface {
	// Retrieve embeds the query, searches the document's namespace and
	// resolves matches to chunk rows. Preconditions are checked before any
	// remote call: an unknown document and a not-ready document never reach
	// the embedding service.
	Retrieve(ctx context.Context, documentID uuid.UUID, query string, k int) (*Result, error)
}

type retriever struct {
	docs     repos.DocumentRepo
	chunks   repos.ChunkRepo
	embedder Embedder
	store    pinecone.VectorStore
	budget   int
	log      *logger.Logger
}

func NewRetriever(
	docs repos.DocumentRepo,
	chunks repos.ChunkRepo,
	embedder Embedder,
	store pinecone.VectorStore,
	baseLog *logger.Logger,
) (Retriever, error) {
	if docs == nil || chunks == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("retriever dependencies missing")
	}
	budget := envutil.Int("RETRIEVAL_CONTEXT_BUDGET", DefaultContextBudget)
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &retriever{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		store:    store,
		budget:   budget,
		log:      baseLog.With("service", "Retriever"),
	}, nil
}

func (r *retriever) Retrieve(ctx context.Context, documentID uuid.UUID, query string, k int) (res *Result, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		observability.Current().ObserveRetrieval(status, time.Since(start))
	}()

	doc, err := r.docs.GetByID(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusReady {
		return nil, fmt.Errorf("%w: document %s is %s", domain.ErrDocumentNotReady, doc.ID, doc.Status)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	embedStart := time.Now()
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	observeLLM("embeddings", embedStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: got %d query embeddings", domain.ErrEmbeddingUnavailable, len(embeddings))
	}

	matches, err := r.store.QueryMatches(ctx, doc.VectorNamespace, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	if len(matches) == 0 {
		return &Result{Document: doc}, nil
	}

	scores := make(map[string]float64, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.VectorID)
		scores[m.VectorID] = m.Score
	}

	// Chunk text always comes from the row store; vector payloads are never
	// trusted as source text.
	rows, err := r.chunks.GetByVectorIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	if len(rows) < len(matches) {
		r.log.Warn("Some matches had no chunk row",
			"document_id", documentID, "matches", len(matches), "rows", len(rows))
	}

	out := make([]ContextChunk, 0, len(rows))
	for _, row := range rows {
		out = append(out, ContextChunk{Chunk: row, Score: scores[row.VectorID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
		}
		return out[i].Score > out[j].Score
	})

	return &Result{Document: doc, Chunks: r.applyBudget(out)}, nil
}

// applyBudget drops whole chunks from the low-similarity end until the total
// text fits. The best chunk is always kept; when it alone exceeds the budget
// it is cut to fit at a rune boundary so the answer is still grounded.
func (r *retriever) applyBudget(chunks []ContextChunk) []ContextChunk {
	total := 0
	for i, c := range chunks {
		total += len(c.Chunk.Text)
		if total > r.budget {
			if i == 0 {
				return []ContextChunk{truncateChunk(c, r.budget)}
			}
			return chunks[:i]
		}
	}
	return chunks
}

// truncateChunk returns a copy of c cut to limit bytes. The copy's span is
// shortened to the kept prefix so citations stay accurate.
func truncateChunk(c ContextChunk, limit int) ContextChunk {
	text := c.Chunk.Text
	if limit <= 0 || len(text) <= limit {
		return c
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	row := *c.Chunk
	row.Text = text[:cut]
	row.EndOffset = row.StartOffset + cut
	return ContextChunk{Chunk: &row, Score: c.Score}
}

func observeLLM(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.Current().ObserveLLM(op, status, time.Since(start))
}
