package device

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteHistory_RecordAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	values := []float64{20.5, 21.0, 21.5}
	for i, v := range values {
		p := Property{Key: "temperature", Value: v, Unit: "°C", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := repo.RecordProperty(ctx, "sensor-1", p); err != nil {
			t.Fatalf("RecordProperty failed: %v", err)
		}
	}

	entries, err := repo.GetHistory(ctx, "sensor-1", "", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Newest first.
	if got, ok := entries[0].Value.(float64); !ok || got != 21.5 {
		t.Errorf("entries[0].Value = %v, want 21.5", entries[0].Value)
	}
	if entries[0].DeviceID != "sensor-1" {
		t.Errorf("DeviceID = %q, want sensor-1", entries[0].DeviceID)
	}
	if entries[0].Key != "temperature" {
		t.Errorf("Key = %q, want temperature", entries[0].Key)
	}
	if entries[0].Unit != "°C" {
		t.Errorf("Unit = %q, want °C", entries[0].Unit)
	}
	if entries[0].RecordedAt.IsZero() {
		t.Error("RecordedAt is zero")
	}
}

func TestSQLiteHistory_KeyFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := repo.RecordProperty(ctx, "sensor-1", Property{Key: "temperature", Value: 20.0, Timestamp: now}); err != nil {
		t.Fatalf("RecordProperty failed: %v", err)
	}
	if err := repo.RecordProperty(ctx, "sensor-1", Property{Key: "humidity", Value: 55.0, Timestamp: now}); err != nil {
		t.Fatalf("RecordProperty failed: %v", err)
	}

	entries, err := repo.GetHistory(ctx, "sensor-1", "humidity", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Key != "humidity" {
		t.Errorf("Key = %q, want humidity", entries[0].Key)
	}
}

func TestSQLiteHistory_DeviceIsolation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := repo.RecordProperty(ctx, "sensor-1", Property{Key: "power", Value: true, Timestamp: now}); err != nil {
		t.Fatalf("RecordProperty failed: %v", err)
	}
	if err := repo.RecordProperty(ctx, "sensor-2", Property{Key: "power", Value: false, Timestamp: now}); err != nil {
		t.Fatalf("RecordProperty failed: %v", err)
	}

	entries, err := repo.GetHistory(ctx, "sensor-2", "", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got, ok := entries[0].Value.(bool); !ok || got != false {
		t.Errorf("Value = %v, want false", entries[0].Value)
	}
}

func TestSQLiteHistory_LimitClamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		p := Property{Key: "brightness", Value: float64(i * 10), Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := repo.RecordProperty(ctx, "dim-1", p); err != nil {
			t.Fatalf("RecordProperty failed: %v", err)
		}
	}

	entries, err := repo.GetHistory(ctx, "dim-1", "", 3)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}

	// Requests above the cap are clamped rather than rejected.
	entries, err = repo.GetHistory(ctx, "dim-1", "", maxHistoryLimit+1000)
	if err != nil {
		t.Fatalf("GetHistory with oversized limit failed: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("got %d entries, want 10", len(entries))
	}
}

func TestSQLiteHistory_RecordValidation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	if err := repo.RecordProperty(ctx, "", Property{Key: "power", Value: true}); err == nil {
		t.Error("expected error for empty device id")
	}
	if err := repo.RecordProperty(ctx, "dev-1", Property{Value: true}); err == nil {
		t.Error("expected error for empty property key")
	}
	if _, err := repo.GetHistory(ctx, "", "", 0); err == nil {
		t.Error("expected error for empty device id in GetHistory")
	}
}

func TestSQLiteHistory_Prune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	old := Property{Key: "temperature", Value: 18.0, Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	recent := Property{Key: "temperature", Value: 22.0, Timestamp: time.Now().UTC()}
	if err := repo.RecordProperty(ctx, "sensor-1", old); err != nil {
		t.Fatalf("RecordProperty failed: %v", err)
	}
	if err := repo.RecordProperty(ctx, "sensor-1", recent); err != nil {
		t.Fatalf("RecordProperty failed: %v", err)
	}

	deleted, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "sensor-1", "", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got, ok := entries[0].Value.(float64); !ok || got != 22.0 {
		t.Errorf("surviving Value = %v, want 22.0", entries[0].Value)
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("expected error for non-positive retention")
	}
}
