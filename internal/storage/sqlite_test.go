package storage

import (
	"path/filepath"
	"testing"
)

func TestSQLiteAdapterRoundtrip(t *testing.T) {
	adapter, err := NewSQLiteAdapter(":memory:")
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	defer adapter.Close()

	// Missing key is not an error
	_, ok, err := adapter.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected missing key to report ok=false")
	}

	if err := adapter.Set("k1", `{"v":1,"data":{}}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := adapter.Get("k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if value != `{"v":1,"data":{}}` {
		t.Errorf("Unexpected value: %s", value)
	}

	// Set replaces in place
	if err := adapter.Set("k1", "second"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, _, _ = adapter.Get("k1")
	if value != "second" {
		t.Errorf("Expected replaced value, got %s", value)
	}
}

func TestSQLiteAdapterRemove(t *testing.T) {
	adapter, err := NewSQLiteAdapter(":memory:")
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	defer adapter.Close()

	adapter.Set("a", "1")
	adapter.Set("b", "2")
	adapter.Set("c", "3")

	if err := adapter.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := adapter.Get("a"); ok {
		t.Error("Expected removed key to be gone")
	}

	// Removing a missing key is a no-op
	if err := adapter.Remove("a"); err != nil {
		t.Fatalf("Remove of missing key failed: %v", err)
	}

	if err := adapter.RemoveMany([]string{"b", "c", "never-existed"}); err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}
	if _, ok, _ := adapter.Get("b"); ok {
		t.Error("Expected b to be gone")
	}
	if _, ok, _ := adapter.Get("c"); ok {
		t.Error("Expected c to be gone")
	}
}

func TestSQLiteAdapterPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	adapter, err := NewSQLiteAdapter(path)
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	adapter.Set("k", "persisted")
	adapter.Close()

	reopened, err := NewSQLiteAdapter(path)
	if err != nil {
		t.Fatalf("Failed to reopen adapter: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || value != "persisted" {
		t.Errorf("Expected persisted value, got ok=%v value=%s", ok, value)
	}

	version, err := SchemaVersion(reopened.db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", CurrentSchemaVersion, version)
	}
}

func TestRecordEnvelope(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
		XP   int    `json:"xp"`
	}

	encoded, err := EncodeRecord(payload{Name: "test", XP: 150})
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	var decoded payload
	if err := DecodeRecord(encoded, &decoded); err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if decoded.Name != "test" || decoded.XP != 150 {
		t.Errorf("Roundtrip mismatch: %+v", decoded)
	}

	// Legacy records without an envelope still decode
	var legacy payload
	if err := DecodeRecord(`{"name":"old","xp":10}`, &legacy); err != nil {
		t.Fatalf("DecodeRecord of legacy record failed: %v", err)
	}
	if legacy.Name != "old" || legacy.XP != 10 {
		t.Errorf("Legacy decode mismatch: %+v", legacy)
	}

	// Future versions are rejected rather than misread
	var future payload
	if err := DecodeRecord(`{"v":99,"data":{}}`, &future); err == nil {
		t.Error("Expected error for future record version")
	}
}
