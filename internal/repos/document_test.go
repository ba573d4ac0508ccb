package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/docchat-backend/internal/domain"
)

func TestDocumentRepoCreateDerivesNamespace(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))
	ctx := context.Background()

	doc, err := repo.Create(ctx, nil, &domain.Document{
		UserID:       uuid.New(),
		OriginalName: "report.pdf",
		Status:       domain.DocumentStatusPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.ID == uuid.Nil {
		t.Fatal("Create did not assign an id")
	}
	want := "doc:" + doc.ID.String()
	if doc.VectorNamespace != want {
		t.Fatalf("namespace = %q, want %q", doc.VectorNamespace, want)
	}

	got, err := repo.GetByID(ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.OriginalName != "report.pdf" {
		t.Fatalf("OriginalName = %q, want %q", got.OriginalName, "report.pdf")
	}
}

func TestDocumentRepoGetByIDMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))

	_, err := repo.GetByID(context.Background(), nil, uuid.New())
	if !errors.Is(err, domain.ErrNoActiveDocument) {
		t.Fatalf("err = %v, want ErrNoActiveDocument", err)
	}
}

func TestDocumentRepoClaimForIngestion(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))
	ctx := context.Background()

	doc, err := repo.Create(ctx, nil, &domain.Document{
		UserID:       uuid.New(),
		OriginalName: "a.pdf",
		Status:       domain.DocumentStatusPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.ClaimForIngestion(ctx, nil, doc.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	got, _ := repo.GetByID(ctx, nil, doc.ID)
	if got.Status != domain.DocumentStatusProcessing {
		t.Fatalf("status = %q, want processing", got.Status)
	}

	// Second claim loses while the first is still processing.
	if err := repo.ClaimForIngestion(ctx, nil, doc.ID); !errors.Is(err, domain.ErrIngestionInProgress) {
		t.Fatalf("second claim err = %v, want ErrIngestionInProgress", err)
	}

	// A failed document can be claimed again.
	if err := repo.MarkFailed(ctx, nil, doc.ID, "embedding service unavailable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := repo.ClaimForIngestion(ctx, nil, doc.ID); err != nil {
		t.Fatalf("reclaim after failure: %v", err)
	}
}

func TestDocumentRepoClaimMissingDocument(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))

	err := repo.ClaimForIngestion(context.Background(), nil, uuid.New())
	if !errors.Is(err, domain.ErrNoActiveDocument) {
		t.Fatalf("err = %v, want ErrNoActiveDocument", err)
	}
}

func TestDocumentRepoMarkReady(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))
	ctx := context.Background()

	doc, err := repo.Create(ctx, nil, &domain.Document{
		UserID:       uuid.New(),
		OriginalName: "a.pdf",
		Status:       domain.DocumentStatusPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.MarkReady(ctx, nil, doc.ID, 12, 40); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	got, _ := repo.GetByID(ctx, nil, doc.ID)
	if got.Status != domain.DocumentStatusReady {
		t.Fatalf("status = %q, want ready", got.Status)
	}
	if got.PageCount != 12 || got.ChunkCount != 40 {
		t.Fatalf("counts = (%d, %d), want (12, 40)", got.PageCount, got.ChunkCount)
	}
	if got.IngestedAt == nil {
		t.Fatal("IngestedAt not set")
	}
}

func TestDocumentRepoDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))
	ctx := context.Background()

	doc, err := repo.Create(ctx, nil, &domain.Document{
		UserID:       uuid.New(),
		OriginalName: "a.pdf",
		Status:       domain.DocumentStatusReady,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, nil, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, nil, doc.ID); !errors.Is(err, domain.ErrNoActiveDocument) {
		t.Fatalf("after delete err = %v, want ErrNoActiveDocument", err)
	}
	if err := repo.Delete(ctx, nil, doc.ID); !errors.Is(err, domain.ErrNoActiveDocument) {
		t.Fatalf("second delete err = %v, want ErrNoActiveDocument", err)
	}
}

func TestDocumentRepoListByUserID(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db, testLog(t))
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	for _, u := range []uuid.UUID{userA, userA, userB} {
		if _, err := repo.Create(ctx, nil, &domain.Document{
			UserID:       u,
			OriginalName: "a.pdf",
			Status:       domain.DocumentStatusPending,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	docs, err := repo.ListByUserID(ctx, nil, userA)
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}
}
