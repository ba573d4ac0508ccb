package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
	"github.com/yungbote/docchat-backend/internal/platform/qdrant"
)

type stubVectorStore struct {
	upserts int
}

func (s *stubVectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	s.upserts++
	return nil
}

func (s *stubVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]pinecone.Match, error) {
	return nil, nil
}

func (s *stubVectorStore) QueryIDs(ctx context.Context, namespace string, q []float32, topK int) ([]string, error) {
	return nil, nil
}

func (s *stubVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	return nil
}

func (s *stubVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	return nil
}

func withStubbedConstructors(t *testing.T, qdrantErr error) *stubVectorStore {
	t.Helper()
	stub := &stubVectorStore{}

	origQdrant := newQdrantVectorStore
	t.Cleanup(func() { newQdrantVectorStore = origQdrant })
	newQdrantVectorStore = func(log *logger.Logger, cfg qdrant.Config) (pinecone.VectorStore, error) {
		if qdrantErr != nil {
			return nil, qdrantErr
		}
		return stub, nil
	}
	return stub
}

func qdrantEnv(t *testing.T) {
	t.Helper()
	t.Setenv("QDRANT_URL", "http://localhost:6333")
	t.Setenv("QDRANT_COLLECTION", "docchat")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")
}

func TestResolveVectorStoreInvalidProvider(t *testing.T) {
	_, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "weaviate"})
	var bootErr *VectorProviderBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("err = %v, want VectorProviderBootstrapError", err)
	}
	if bootErr.Code != VectorProviderBootstrapErrorInvalidProvider {
		t.Fatalf("code = %s", bootErr.Code)
	}
}

func TestResolveVectorStorePineconeMissingKey(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	_, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "pinecone"})
	var bootErr *VectorProviderBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("err = %v", err)
	}
	if bootErr.Code != VectorProviderBootstrapErrorMissingAPIKey {
		t.Fatalf("code = %s", bootErr.Code)
	}
}

func TestResolveVectorStoreQdrantSuccessIsInstrumented(t *testing.T) {
	qdrantEnv(t)
	stub := withStubbedConstructors(t, nil)

	vs, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "qdrant"})
	if err != nil {
		t.Fatalf("resolveVectorStore: %v", err)
	}
	if _, ok := vs.(*instrumentedVectorStore); !ok {
		t.Fatalf("store type = %T, want instrumented wrapper", vs)
	}
	if err := vs.Upsert(context.Background(), "ns", nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stub.upserts != 1 {
		t.Fatalf("upserts = %d, want passthrough to inner store", stub.upserts)
	}
}

func TestResolveVectorStoreQdrantConfigError(t *testing.T) {
	qdrantEnv(t)
	t.Setenv("QDRANT_URL", "")
	withStubbedConstructors(t, nil)

	_, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "qdrant"})
	var bootErr *VectorProviderBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("err = %v", err)
	}
	if bootErr.Code != VectorProviderBootstrapErrorQdrantConfigFailed {
		t.Fatalf("code = %s", bootErr.Code)
	}
}

func TestResolveVectorStoreQdrantConnectFailureClassified(t *testing.T) {
	qdrantEnv(t)
	withStubbedConstructors(t, fmt.Errorf("ready check failed: connection refused"))

	_, err := resolveVectorStore(logger.NewNop(), Config{VectorProvider: "qdrant"})
	var bootErr *VectorProviderBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("err = %v", err)
	}
	if bootErr.Code != VectorProviderBootstrapErrorConnectFailed {
		t.Fatalf("code = %s", bootErr.Code)
	}
}
