package app

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strings"
	"time"

	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
	"github.com/yungbote/docchat-backend/internal/platform/qdrant"
)

// Overridable for tests.
var (
	newPineconeClient      = pinecone.New
	newPineconeVectorStore = pinecone.NewVectorStore
	newQdrantVectorStore   = qdrant.NewVectorStore
)

type VectorProvider string

const (
	VectorProviderPinecone VectorProvider = "pinecone"
	VectorProviderQdrant   VectorProvider = "qdrant"
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider    VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingAPIKey      VectorProviderBootstrapErrorCode = "missing_api_key"
	VectorProviderBootstrapErrorQdrantConfigFailed VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed      VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorStore selects and boots the configured vector store. Unlike
// most startup failures this one is fatal: every ingestion and retrieval
// path needs the index.
func resolveVectorStore(log *logger.Logger, cfg Config) (pinecone.VectorStore, error) {
	provider := cfg.VectorProvider

	switch provider {
	case string(VectorProviderQdrant):
		qcfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			return nil, classifyBootstrapError(provider, err)
		}
		log.Info("Selecting vector store provider",
			"provider", provider,
			"qdrant_url", qcfg.URL,
			"qdrant_collection", qcfg.Collection,
		)
		vs, err := newQdrantVectorStore(log, qcfg)
		if err != nil {
			classified := classifyBootstrapError(provider, err)
			log.Error("Vector store bootstrap failed", "provider", provider, "error", classified)
			return nil, classified
		}
		return instrumentVectorStore(provider, vs), nil

	case string(VectorProviderPinecone):
		apiKey := strings.TrimSpace(os.Getenv("PINECONE_API_KEY"))
		if apiKey == "" {
			return nil, &VectorProviderBootstrapError{
				Code:     VectorProviderBootstrapErrorMissingAPIKey,
				Provider: provider,
				Cause:    fmt.Errorf("PINECONE_API_KEY not set"),
			}
		}
		log.Info("Selecting vector store provider", "provider", provider)
		pc, err := newPineconeClient(log, pinecone.Config{
			APIKey:     apiKey,
			APIVersion: strings.TrimSpace(os.Getenv("PINECONE_API_VERSION")),
			BaseURL:    strings.TrimSpace(os.Getenv("PINECONE_BASE_URL")),
			Timeout:    30 * time.Second,
		})
		if err != nil {
			classified := classifyBootstrapError(provider, err)
			log.Error("Vector store bootstrap failed", "provider", provider, "error", classified)
			return nil, classified
		}
		vs, err := newPineconeVectorStore(log, pc)
		if err != nil {
			classified := classifyBootstrapError(provider, err)
			log.Error("Vector store bootstrap failed", "provider", provider, "error", classified)
			return nil, classified
		}
		return instrumentVectorStore(provider, vs), nil

	default:
		return nil, &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
	}
}

func classifyBootstrapError(provider string, err error) error {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorConnectFailed,
			Provider: provider,
			Cause:    err,
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorConnectFailed,
			Provider: provider,
			Cause:    err,
		}
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorConnectFailed,
			Provider: provider,
			Cause:    err,
		}
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		return &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorQdrantConfigFailed,
			Provider: provider,
			Cause:    err,
		}
	}

	return &VectorProviderBootstrapError{
		Code:     VectorProviderBootstrapErrorProviderInitFailed,
		Provider: provider,
		Cause:    err,
	}
}
