package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/docchat-backend/internal/platform/envutil"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

// BlobStore keeps the original upload bytes so a failed document can be
// re-ingested without asking the client to upload again.
type BlobStore interface {
	Save(documentID uuid.UUID, data []byte) error
	Load(documentID uuid.UUID) ([]byte, error)
	Delete(documentID uuid.UUID) error
}

type localStore struct {
	root string
	log  *logger.Logger
}

func NewLocalStore(baseLog *logger.Logger) (BlobStore, error) {
	root := strings.TrimSpace(envutil.Str("DOCUMENT_DATA_DIR", ""))
	if root == "" {
		root = filepath.Join(os.TempDir(), "docchat", "documents")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create document data dir %s: %w", root, err)
	}
	return &localStore{
		root: root,
		log:  baseLog.With("service", "LocalBlobStore"),
	}, nil
}

func (s *localStore) path(documentID uuid.UUID) string {
	return filepath.Join(s.root, documentID.String())
}

func (s *localStore) Save(documentID uuid.UUID, data []byte) error {
	if documentID == uuid.Nil {
		return fmt.Errorf("document id required")
	}
	tmp := s.path(documentID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write document blob: %w", err)
	}
	// Rename so readers never see a partial file.
	if err := os.Rename(tmp, s.path(documentID)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize document blob: %w", err)
	}
	return nil
}

func (s *localStore) Load(documentID uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(s.path(documentID))
	if err != nil {
		return nil, fmt.Errorf("read document blob: %w", err)
	}
	return data, nil
}

func (s *localStore) Delete(documentID uuid.UUID) error {
	err := os.Remove(s.path(documentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete document blob: %w", err)
	}
	return nil
}
