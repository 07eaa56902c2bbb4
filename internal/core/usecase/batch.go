package usecase

import "github.com/kirillkom/menu-extractor/internal/core/domain"

// estimateTokens approximates model tokens from text length. Four
// characters per token is the usual rule of thumb; image-bearing
// documents get a flat page-based charge since their payload is not
// tokenized as text.
func estimateTokens(doc domain.PreparedDocument) int {
	const (
		charsPerToken  = 4
		tokensPerPage  = 800
		minDocTokens   = 50
		imageFlatPages = 1
	)
	if doc.Kind == domain.KindImageBearing {
		pages := doc.PageCount
		if pages < imageFlatPages {
			pages = imageFlatPages
		}
		return pages * tokensPerPage
	}
	tokens := len(doc.TextContent) / charsPerToken
	if tokens < minDocTokens {
		return minDocTokens
	}
	return tokens
}

// partitionDocuments groups documents into batches whose estimated token
// total stays under budget. A single oversized document still forms its
// own batch; splitting one document across calls loses too much context.
func partitionDocuments(docs []domain.PreparedDocument, budget int) [][]domain.PreparedDocument {
	var batches [][]domain.PreparedDocument
	var current []domain.PreparedDocument
	used := 0

	for _, doc := range docs {
		tokens := estimateTokens(doc)
		if len(current) > 0 && used+tokens > budget {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, doc)
		used += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func partitionItems(items []domain.RawExtractedItem, size int) [][]domain.RawExtractedItem {
	if size <= 0 {
		size = 1
	}
	var batches [][]domain.RawExtractedItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
