package repos

import (
	"context"
	"testing"
)

func TestUserRepoGetOrCreateByExternalRef(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db, testLog(t))
	ctx := context.Background()

	first, err := repo.GetOrCreateByExternalRef(ctx, nil, "client-123")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := repo.GetOrCreateByExternalRef(ctx, nil, "client-123")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %s vs %s", first.ID, second.ID)
	}

	other, err := repo.GetOrCreateByExternalRef(ctx, nil, "client-456")
	if err != nil {
		t.Fatalf("other ref: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("distinct refs share an id")
	}
}
