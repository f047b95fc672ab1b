package session

import (
	"context"
	"encoding/json"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestArchiveSaveLoadDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	archive := NewArchive(client, nil)
	ctx := context.Background()

	transcript := []Turn{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "I have a headache"},
		{Role: RoleAssistant, Content: "How long has it lasted?"},
	}
	if err := archive.Save(ctx, "911234567890", transcript); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	raw, err := mr.DB(0).Get("session:911234567890")
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	var stored []Turn
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("decode stored transcript: %v", err)
	}
	if len(stored) != 3 || stored[0].Role != RoleSystem {
		t.Fatalf("unexpected stored transcript: %+v", stored)
	}

	loaded, err := archive.Load(ctx, "911234567890")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 3 || loaded[2].Content != "How long has it lasted?" {
		t.Fatalf("unexpected loaded transcript: %+v", loaded)
	}

	if err := archive.Delete(ctx, "911234567890"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	gone, err := archive.Load(ctx, "911234567890")
	if err != nil {
		t.Fatalf("load after delete failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected nil transcript after delete, got %+v", gone)
	}
}

func TestArchiveLoadMissingIsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	archive := NewArchive(client, nil)

	transcript, err := archive.Load(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if transcript != nil {
		t.Fatalf("expected nil for unknown identity, got %+v", transcript)
	}
}
