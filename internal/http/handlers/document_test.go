package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/domain"
	"github.com/yungbote/docchat-backend/internal/platform/logger"
	"github.com/yungbote/docchat-backend/internal/platform/pinecone"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	user *domain.User
}

func (f *fakeUsers) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.User, error) {
	return f.user, nil
}

func (f *fakeUsers) GetOrCreateByExternalRef(ctx context.Context, tx *gorm.DB, ref string) (*domain.User, error) {
	if f.user == nil {
		f.user = &domain.User{ID: uuid.New(), ExternalRef: ref}
	}
	return f.user, nil
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*domain.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[uuid.UUID]*domain.Document{}}
}

func (f *fakeDocs) Create(ctx context.Context, tx *gorm.DB, doc *domain.Document) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.VectorNamespace = domain.NamespaceFor(doc.ID)
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeDocs) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNoActiveDocument
	}
	return doc, nil
}

func (f *fakeDocs) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocs) ClaimForIngestion(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func (f *fakeDocs) MarkReady(ctx context.Context, tx *gorm.DB, id uuid.UUID, pageCount, chunkCount int) error {
	return nil
}

func (f *fakeDocs) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error {
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.ErrNoActiveDocument
	}
	delete(f.docs, id)
	return nil
}

type fakeChunks struct {
	deleted []uuid.UUID
}

func (f *fakeChunks) Create(ctx context.Context, tx *gorm.DB, chunks []*domain.DocumentChunk) ([]*domain.DocumentChunk, error) {
	return chunks, nil
}

func (f *fakeChunks) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*domain.DocumentChunk, error) {
	return nil, nil
}

func (f *fakeChunks) GetByVectorIDs(ctx context.Context, tx *gorm.DB, vectorIDs []string) ([]*domain.DocumentChunk, error) {
	return nil, nil
}

func (f *fakeChunks) DeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

type fakeIngest struct {
	mu    sync.Mutex
	calls []uuid.UUID
	data  [][]byte
}

func (f *fakeIngest) Ingest(ctx context.Context, documentID uuid.UUID, data []byte) error {
	f.record(documentID, data)
	return nil
}

func (f *fakeIngest) IngestAsync(ctx context.Context, documentID uuid.UUID, data []byte) {
	f.record(documentID, data)
}

func (f *fakeIngest) record(documentID uuid.UUID, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, documentID)
	f.data = append(f.data, data)
}

type fakeBlobs struct {
	mu    sync.Mutex
	blobs map[uuid.UUID][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[uuid.UUID][]byte{}}
}

func (f *fakeBlobs) Save(documentID uuid.UUID, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[documentID] = data
	return nil
}

func (f *fakeBlobs) Load(documentID uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[documentID]
	if !ok {
		return nil, fmt.Errorf("no blob")
	}
	return data, nil
}

func (f *fakeBlobs) Delete(documentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, documentID)
	return nil
}

type fakeVectorStore struct {
	deletedNS []string
}

func (f *fakeVectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	return nil
}

func (f *fakeVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]pinecone.Match, error) {
	return nil, nil
}

func (f *fakeVectorStore) QueryIDs(ctx context.Context, namespace string, q []float32, topK int) ([]string, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	return nil
}

func (f *fakeVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	f.deletedNS = append(f.deletedNS, namespace)
	return nil
}

type docRig struct {
	users   *fakeUsers
	docs    *fakeDocs
	chunks  *fakeChunks
	ingest  *fakeIngest
	blobs   *fakeBlobs
	store   *fakeVectorStore
	handler *DocumentHandler
	router  *gin.Engine
}

func newDocRig(t *testing.T) *docRig {
	t.Helper()
	rig := &docRig{
		users:  &fakeUsers{},
		docs:   newFakeDocs(),
		chunks: &fakeChunks{},
		ingest: &fakeIngest{},
		blobs:  newFakeBlobs(),
		store:  &fakeVectorStore{},
	}
	rig.handler = NewDocumentHandler(
		logger.NewNop(), rig.users, rig.docs, rig.chunks, rig.ingest, rig.blobs, rig.store,
	)
	r := gin.New()
	r.POST("/api/documents", rig.handler.Upload)
	r.GET("/api/documents", rig.handler.List)
	r.GET("/api/documents/:id", rig.handler.Get)
	r.POST("/api/documents/:id/reingest", rig.handler.Reingest)
	r.DELETE("/api/documents/:id", rig.handler.Delete)
	rig.router = r
	return rig
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func TestUploadAcceptsAndStartsIngestion(t *testing.T) {
	rig := newDocRig(t)
	body, contentType := multipartUpload(t, "report.txt", []byte("hello world"))

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "ext-1")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Document domain.Document `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Document.Status != domain.DocumentStatusPending {
		t.Fatalf("status = %q, want pending", resp.Document.Status)
	}
	if len(rig.ingest.calls) != 1 || rig.ingest.calls[0] != resp.Document.ID {
		t.Fatalf("ingest calls = %v", rig.ingest.calls)
	}
	if blob, err := rig.blobs.Load(resp.Document.ID); err != nil || string(blob) != "hello world" {
		t.Fatalf("blob = %q, err = %v", blob, err)
	}
}

func TestUploadRequiresUserHeader(t *testing.T) {
	rig := newDocRig(t)
	body, contentType := multipartUpload(t, "report.txt", []byte("x"))

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(rig.ingest.calls) != 0 {
		t.Fatal("ingestion started without user")
	}
}

func TestUploadRequiresFile(t *testing.T) {
	rig := newDocRig(t)
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("note", "no file here")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-User-ID", "ext-1")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetForeignDocumentIsNotFound(t *testing.T) {
	rig := newDocRig(t)
	other := uuid.New()
	doc, _ := rig.docs.Create(context.Background(), nil, &domain.Document{
		UserID: other, OriginalName: "a.txt", Status: domain.DocumentStatusReady,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID.String(), nil)
	req.Header.Set("X-User-ID", "ext-1")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestReingestRequiresFailedStatus(t *testing.T) {
	rig := newDocRig(t)
	user, _ := rig.users.GetOrCreateByExternalRef(context.Background(), nil, "ext-1")
	doc, _ := rig.docs.Create(context.Background(), nil, &domain.Document{
		UserID: user.ID, OriginalName: "a.txt", Status: domain.DocumentStatusReady,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+doc.ID.String()+"/reingest", nil)
	req.Header.Set("X-User-ID", "ext-1")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if len(rig.ingest.calls) != 0 {
		t.Fatal("ingestion started for ready document")
	}
}

func TestReingestFailedDocumentReplaysBlob(t *testing.T) {
	rig := newDocRig(t)
	user, _ := rig.users.GetOrCreateByExternalRef(context.Background(), nil, "ext-1")
	doc, _ := rig.docs.Create(context.Background(), nil, &domain.Document{
		UserID: user.ID, OriginalName: "a.txt", Status: domain.DocumentStatusFailed,
	})
	_ = rig.blobs.Save(doc.ID, []byte("original bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+doc.ID.String()+"/reingest", nil)
	req.Header.Set("X-User-ID", "ext-1")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(rig.ingest.calls) != 1 || string(rig.ingest.data[0]) != "original bytes" {
		t.Fatalf("ingest not replayed with original bytes: %v", rig.ingest.calls)
	}
}

func TestDeleteCascades(t *testing.T) {
	rig := newDocRig(t)
	user, _ := rig.users.GetOrCreateByExternalRef(context.Background(), nil, "ext-1")
	doc, _ := rig.docs.Create(context.Background(), nil, &domain.Document{
		UserID: user.ID, OriginalName: "a.txt", Status: domain.DocumentStatusReady,
	})
	_ = rig.blobs.Save(doc.ID, []byte("bytes"))

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID.String(), nil)
	req.Header.Set("X-User-ID", "ext-1")
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(rig.chunks.deleted) != 1 || rig.chunks.deleted[0] != doc.ID {
		t.Fatalf("chunk cleanup = %v", rig.chunks.deleted)
	}
	wantNS := domain.NamespaceFor(doc.ID)
	if len(rig.store.deletedNS) != 1 || rig.store.deletedNS[0] != wantNS {
		t.Fatalf("namespace cleanup = %v, want %s", rig.store.deletedNS, wantNS)
	}
	if _, err := rig.blobs.Load(doc.ID); err == nil {
		t.Fatal("blob survived delete")
	}
}
