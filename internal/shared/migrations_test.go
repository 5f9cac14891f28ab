package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		tc := []struct {
			file      string
			version   int
			name      string
			direction string
			ok        bool
		}{
			{"0000_create_positions_up.sql", 0, "create_positions", "up", true},
			{"0001_index_positions_updated_down.sql", 1, "index_positions_updated", "down", true},
			{"README.md", 0, "", "", false},
			{"abc_thing_up.sql", 0, "", "", false},
			{"0002_sideways.sql", 0, "", "", false},
		}

		for _, tt := range tc {
			t.Run(tt.file, func(t *testing.T) {
				v, n, d, ok := parseMigrationName(tt.file)
				if ok != tt.ok || v != tt.version || n != tt.name || d != tt.direction {
					t.Errorf("parseMigrationName(%q) = (%d, %q, %q, %v)", tt.file, v, n, d, ok)
				}
			})
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		applied, err := AppliedVersions(db)
		if err != nil {
			t.Fatalf("failed to list applied versions: %v", err)
		}
		if len(applied) == 0 {
			t.Fatal("expected at least one migration to be applied")
		}

		if _, err := db.Exec("SELECT 1 FROM playlist_positions LIMIT 1"); err != nil {
			t.Errorf("playlist_positions table should exist after migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		after, err := AppliedVersions(db)
		if err != nil {
			t.Fatalf("failed to list applied versions after rollback: %v", err)
		}
		if len(after) != len(applied)-1 {
			t.Errorf("expected %d applied migrations after rollback, got %d", len(applied)-1, len(after))
		}
	})

	t.Run("Rollback Everything", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		for range migrations {
			if err := RollbackMigration(db); err != nil {
				t.Fatalf("rollback failed: %v", err)
			}
		}

		if _, err := db.Exec("SELECT 1 FROM playlist_positions LIMIT 1"); err == nil {
			t.Error("playlist_positions table should be gone after full rollback")
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is left to roll back")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		applied, _ := AppliedVersions(db)
		migrations, _ := loadMigrations()
		if len(applied) != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), len(applied))
		}
	})
}
