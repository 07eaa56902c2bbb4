package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func TestEstimateTokens(t *testing.T) {
	text := textDoc("d1", "a.txt", strings.Repeat("x", 4000))
	if got := estimateTokens(text); got != 1000 {
		t.Errorf("text estimate = %d, want 1000", got)
	}

	tiny := textDoc("d2", "b.txt", "short")
	if got := estimateTokens(tiny); got != 50 {
		t.Errorf("tiny text floor = %d, want 50", got)
	}

	image := domain.PreparedDocument{Kind: domain.KindImageBearing, PageCount: 3}
	if got := estimateTokens(image); got != 2400 {
		t.Errorf("image estimate = %d, want 2400", got)
	}

	scan := domain.PreparedDocument{Kind: domain.KindImageBearing}
	if got := estimateTokens(scan); got != 800 {
		t.Errorf("pageless image estimate = %d, want 800", got)
	}
}

func TestPartitionDocumentsRespectsBudget(t *testing.T) {
	docs := []domain.PreparedDocument{
		textDoc("d1", "a", strings.Repeat("x", 2000)), // 500 tokens
		textDoc("d2", "b", strings.Repeat("x", 2000)), // 500 tokens
		textDoc("d3", "c", strings.Repeat("x", 2000)), // 500 tokens
	}
	batches := partitionDocuments(docs, 1000)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Errorf("unexpected split: %d/%d", len(batches[0]), len(batches[1]))
	}
}

func TestPartitionDocumentsOversizedDocGetsOwnBatch(t *testing.T) {
	docs := []domain.PreparedDocument{
		textDoc("d1", "a", strings.Repeat("x", 40000)), // 10k tokens, over budget
		textDoc("d2", "b", "short"),
	}
	batches := partitionDocuments(docs, 1000)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0][0].ID != "d1" || batches[1][0].ID != "d2" {
		t.Errorf("unexpected assignment: %v", batches)
	}
}

func TestPartitionDocumentsEmpty(t *testing.T) {
	if batches := partitionDocuments(nil, 1000); batches != nil {
		t.Errorf("expected nil, got %v", batches)
	}
}

func TestPartitionItems(t *testing.T) {
	items := make([]domain.RawExtractedItem, 45)
	batches := partitionItems(items, 20)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 20 || len(batches[1]) != 20 || len(batches[2]) != 5 {
		t.Errorf("unexpected sizes: %d/%d/%d", len(batches[0]), len(batches[1]), len(batches[2]))
	}

	if got := partitionItems(items, 0); len(got) != 45 {
		t.Errorf("non-positive size should batch one at a time, got %d batches", len(got))
	}
}
