package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/playhead/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := NextSequence(ctx, db, "playlist_positions")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	second, err := NextSequence(ctx, db, "playlist_positions")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected consecutive sequences, got %d then %d", first, second)
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}

func TestPositionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get Missing Returns Nil", func(t *testing.T) {
		repo := NewPositionRepository(setupTestDB(t))

		p, err := repo.Get(ctx, "u1", "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != nil {
			t.Errorf("expected nil position, got %+v", p)
		}
	})

	t.Run("Put Then Get", func(t *testing.T) {
		repo := NewPositionRepository(setupTestDB(t))

		saved, err := repo.Put(ctx, "u1", "p1", "t1")
		if err != nil {
			t.Fatalf("failed to put position: %v", err)
		}
		if saved.ID == "" {
			t.Error("expected id to be assigned")
		}

		got, err := repo.Get(ctx, "u1", "p1")
		if err != nil {
			t.Fatalf("failed to get position: %v", err)
		}
		if got == nil || got.TrackID != "t1" {
			t.Fatalf("expected track t1, got %+v", got)
		}
	})

	t.Run("Put Upserts Per User And Playlist", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPositionRepository(db)

		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return base }
		first, err := repo.Put(ctx, "u1", "p1", "t1")
		if err != nil {
			t.Fatalf("first put failed: %v", err)
		}

		repo.now = func() time.Time { return base.Add(time.Minute) }
		second, err := repo.Put(ctx, "u1", "p1", "t2")
		if err != nil {
			t.Fatalf("second put failed: %v", err)
		}

		if second.ID != first.ID {
			t.Errorf("expected upsert to keep id %s, got %s", first.ID, second.ID)
		}
		if second.TrackID != "t2" {
			t.Errorf("expected track t2, got %s", second.TrackID)
		}
		if !second.UpdatedAt.After(first.UpdatedAt) {
			t.Errorf("expected updated_at to advance, got %v then %v", first.UpdatedAt, second.UpdatedAt)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM playlist_positions").Scan(&count); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected one row, got %d", count)
		}
	})

	t.Run("Put Rejects Missing Fields", func(t *testing.T) {
		repo := NewPositionRepository(setupTestDB(t))

		tc := []struct {
			name     string
			user     string
			playlist string
			track    string
		}{
			{"missing user", "", "p1", "t1"},
			{"missing playlist", "u1", "", "t1"},
			{"missing track", "u1", "p1", ""},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				_, err := repo.Put(ctx, tt.user, modelsPlaylist(tt.playlist), modelsTrack(tt.track))
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
			})
		}
	})

	t.Run("Delete Returns Removed Rows", func(t *testing.T) {
		repo := NewPositionRepository(setupTestDB(t))

		if _, err := repo.Put(ctx, "u1", "p1", "t1"); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if _, err := repo.Put(ctx, "u1", "p2", "t9"); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		deleted, err := repo.Delete(ctx, "u1", "p1")
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if len(deleted) != 1 || deleted[0].TrackID != "t1" {
			t.Errorf("expected the p1 row to be returned, got %+v", deleted)
		}

		if p, _ := repo.Get(ctx, "u1", "p1"); p != nil {
			t.Error("expected p1 to be gone")
		}
		if p, _ := repo.Get(ctx, "u1", "p2"); p == nil {
			t.Error("expected p2 to remain")
		}

		again, err := repo.Delete(ctx, "u1", "p1")
		if err != nil {
			t.Fatalf("second delete failed: %v", err)
		}
		if len(again) != 0 {
			t.Errorf("expected empty result, got %d rows", len(again))
		}
	})

	t.Run("List Orders By Recency", func(t *testing.T) {
		repo := NewPositionRepository(setupTestDB(t))

		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		for i, pl := range []string{"p1", "p2", "p3"} {
			repo.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
			if _, err := repo.Put(ctx, "u1", modelsPlaylist(pl), "t"); err != nil {
				t.Fatalf("put failed: %v", err)
			}
		}
		if _, err := repo.Put(ctx, "other", "p1", "t"); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		positions, err := repo.List(ctx, "u1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(positions) != 3 {
			t.Fatalf("expected 3 positions, got %d", len(positions))
		}
		if positions[0].PlaylistID != "p3" || positions[2].PlaylistID != "p1" {
			t.Errorf("unexpected order: %v, %v, %v", positions[0].PlaylistID, positions[1].PlaylistID, positions[2].PlaylistID)
		}
	})
}
