package database

import (
	"context"
	"database/sql"
	"testing"
)

func TestConnect_RequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), DefaultConfig()); err == nil {
		t.Fatal("expected error for empty database URL")
	}
}

func TestStats_ReportsPoolConfiguration(t *testing.T) {
	// sql.Open does not dial; pool statistics work without a live server.
	pool, err := sql.Open("postgres", "postgres://localhost/adjutant?sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer pool.Close()
	pool.SetMaxOpenConns(3)

	db := &DB{DB: pool}
	stats := db.Stats()

	if got := stats["max_open_connections"]; got != 3 {
		t.Errorf("max_open_connections: %v", got)
	}
	for _, key := range []string{"open_connections", "in_use", "idle", "wait_count"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("missing stats key %q", key)
		}
	}
}
