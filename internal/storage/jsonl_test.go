package storage

import (
	"path/filepath"
	"testing"

	"volmint/internal/model"
)

func TestJournalAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "options.jsonl")
	journal := NewJsonlJournal(path)

	first := []model.LifecycleEvent{
		{Kind: model.EventMint, TokenID: 1, Recipient: "0x1111111111111111111111111111111111111111", Amount: "500", StrikePrice: "1200", ExpiryPrice: "830", Timestamp: 1700000000},
	}
	if err := journal.AppendEvents(first); err != nil {
		t.Fatalf("append: %v", err)
	}

	second := []model.LifecycleEvent{
		{Kind: model.EventVoid, TokenID: 1, ExpiryPrice: "830", Timestamp: 1700003600},
		{Kind: model.EventMint, TokenID: 2, Recipient: "0x1111111111111111111111111111111111111111", Amount: "10", StrikePrice: "1300", ExpiryPrice: "900", Timestamp: 1700007200},
	}
	if err := journal.AppendEvents(second); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != model.EventMint || events[0].TokenID != 1 {
		t.Fatalf("first event mismatch: %+v", events[0])
	}
	if events[1].Kind != model.EventVoid {
		t.Fatalf("second event mismatch: %+v", events[1])
	}
	if events[2].StrikePrice != "1300" {
		t.Fatalf("third event mismatch: %+v", events[2])
	}
}

func TestReadJournalMissingFile(t *testing.T) {
	events, err := ReadJournal(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestAppendEventsEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.jsonl")
	if err := NewJsonlJournal(path).AppendEvents(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("empty batch must not create events, got %d", len(events))
	}
}
