package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/retrieval"
)

type fakeRetriever struct {
	res   *retrieval.Result
	err   error
	calls int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, documentID uuid.UUID, query string, k int) (*retrieval.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
	seen  string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, system string, user string) (string, error) {
	f.calls++
	f.seen = user
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type memTurns struct {
	turns []*domain.ConversationTurn
}

func (m *memTurns) Append(ctx context.Context, tx *gorm.DB, turn *domain.ConversationTurn) (*domain.ConversationTurn, error) {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	m.turns = append(m.turns, turn)
	return turn, nil
}

func (m *memTurns) ListRecent(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID, limit int) ([]*domain.ConversationTurn, error) {
	if limit > len(m.turns) {
		limit = len(m.turns)
	}
	return m.turns[len(m.turns)-limit:], nil
}

func (m *memTurns) ListByDocumentID(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) ([]*domain.ConversationTurn, error) {
	return m.turns, nil
}

func resultWithChunks(texts ...string) *retrieval.Result {
	docID := uuid.New()
	res := &retrieval.Result{Document: &domain.Document{ID: docID, Status: domain.DocumentStatusReady}}
	for i, text := range texts {
		res.Chunks = append(res.Chunks, retrieval.ContextChunk{
			Chunk: &domain.DocumentChunk{
				ID:          uuid.New(),
				DocumentID:  docID,
				Ordinal:     i,
				Text:        text,
				StartOffset: i * 100,
				EndOffset:   i*100 + len(text),
				VectorID:    domain.VectorIDFor(docID, i),
			},
			Score: 1 - float64(i)*0.1,
		})
	}
	return res
}

func newOrchestrator(t *testing.T, ret *fakeRetriever, gen *fakeGenerator, turns *memTurns) Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(ret, gen, turns, DefaultPromptConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func TestAnswerMapsCitations(t *testing.T) {
	res := resultWithChunks("solar output numbers", "wind output numbers")
	ret := &fakeRetriever{res: res}
	gen := &fakeGenerator{text: "Solar produced 40% [Source 1]."}
	turns := &memTurns{}
	o := newOrchestrator(t, ret, gen, turns)

	ans, err := o.Answer(context.Background(), AnswerRequest{
		DocumentID: res.Document.ID,
		UserID:     uuid.New(),
		Message:    "how much solar?",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Degraded {
		t.Fatal("answer degraded")
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(ans.Citations))
	}
	c := ans.Citations[0]
	want := res.Chunks[0].Chunk
	if c.ChunkID != want.ID || c.Ordinal != 0 || c.StartOffset != want.StartOffset || c.EndOffset != want.EndOffset {
		t.Fatalf("citation = %+v, chunk = %+v", c, want)
	}
	// Prompt carried numbered excerpts in retrieval order.
	if !strings.Contains(gen.seen, "[Source 1]\nsolar output numbers") {
		t.Fatalf("prompt missing source block: %q", gen.seen)
	}
}

func TestAnswerIgnoresOutOfRangeMarkers(t *testing.T) {
	res := resultWithChunks("only one chunk")
	ret := &fakeRetriever{res: res}
	gen := &fakeGenerator{text: "See [Source 1] and [Source 7]."}
	o := newOrchestrator(t, ret, gen, &memTurns{})

	ans, err := o.Answer(context.Background(), AnswerRequest{
		DocumentID: res.Document.ID, UserID: uuid.New(), Message: "q",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(ans.Citations))
	}
}

func TestAnswerDegradedOnModelFailure(t *testing.T) {
	res := resultWithChunks("chunk text")
	ret := &fakeRetriever{res: res}
	gen := &fakeGenerator{err: errors.New("model timeout")}
	turns := &memTurns{}
	o := newOrchestrator(t, ret, gen, turns)

	ans, err := o.Answer(context.Background(), AnswerRequest{
		DocumentID: res.Document.ID, UserID: uuid.New(), Message: "q",
	})
	if err != nil {
		t.Fatalf("Answer returned error for model failure: %v", err)
	}
	if !ans.Degraded {
		t.Fatal("answer not marked degraded")
	}
	if ans.Text != DefaultPromptConfig().FallbackMessage {
		t.Fatalf("text = %q, want fallback", ans.Text)
	}
	if len(ans.Citations) != 0 {
		t.Fatalf("degraded answer carries citations: %d", len(ans.Citations))
	}
	// Both turns persisted, assistant one flagged.
	if len(turns.turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns.turns))
	}
	last := turns.turns[1]
	if last.Role != domain.TurnRoleAssistant || !last.Degraded {
		t.Fatalf("assistant turn = %+v", last)
	}
}

func TestAnswerPropagatesPreconditionErrors(t *testing.T) {
	ret := &fakeRetriever{err: domain.ErrDocumentNotReady}
	gen := &fakeGenerator{text: "never used"}
	turns := &memTurns{}
	o := newOrchestrator(t, ret, gen, turns)

	_, err := o.Answer(context.Background(), AnswerRequest{
		DocumentID: uuid.New(), UserID: uuid.New(), Message: "q",
	})
	if !errors.Is(err, domain.ErrDocumentNotReady) {
		t.Fatalf("err = %v, want ErrDocumentNotReady", err)
	}
	if gen.calls != 0 {
		t.Fatal("model called despite failed precondition")
	}
	if len(turns.turns) != 0 {
		t.Fatal("turn persisted despite failed precondition")
	}
}

func TestAnswerEmptyMessageRejected(t *testing.T) {
	o := newOrchestrator(t, &fakeRetriever{res: resultWithChunks()}, &fakeGenerator{}, &memTurns{})
	if _, err := o.Answer(context.Background(), AnswerRequest{Message: "   "}); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestTrimHistoryDropsOldest(t *testing.T) {
	o := &orchestrator{historyChars: 10}
	history := []*domain.ConversationTurn{
		{Text: "aaaaaa"},
		{Text: "bbbbbb"},
		{Text: "cc"},
	}
	got := o.trimHistory(history)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "bbbbbb" {
		t.Fatalf("got[0].Text = %q", got[0].Text)
	}
}

func TestAnswerNoChunksStillAnswers(t *testing.T) {
	res := resultWithChunks()
	ret := &fakeRetriever{res: res}
	gen := &fakeGenerator{text: "The document does not cover this."}
	o := newOrchestrator(t, ret, gen, &memTurns{})

	ans, err := o.Answer(context.Background(), AnswerRequest{
		DocumentID: res.Document.ID, UserID: uuid.New(), Message: "q",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Citations) != 0 {
		t.Fatalf("citations = %d, want 0", len(ans.Citations))
	}
	if !strings.Contains(gen.seen, "No relevant excerpts") {
		t.Fatalf("prompt = %q", gen.seen)
	}
}
