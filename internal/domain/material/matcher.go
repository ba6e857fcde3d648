package material

import (
	"strings"

	"stockledger/internal/domain/stock"
)

// Matcher resolves a material record to one of the candidate items.
// Candidates arrive ordered by sku; the first acceptable one wins.
type Matcher interface {
	Name() string
	Match(rec Record, candidates []stock.StockItem) (stock.StockItem, bool)
}

// DefaultMatchers returns the matcher chain: exact key, category patterns,
// then the generic name fallback.
func DefaultMatchers(patterns []CategoryPattern) []Matcher {
	return []Matcher{
		ExactKeyMatcher{},
		CategoryMatcher{Patterns: patterns},
		NameMatcher{MinLength: 3},
	}
}

// ExactKeyMatcher matches when the material key equals the item sku, ignoring case.
type ExactKeyMatcher struct{}

func (ExactKeyMatcher) Name() string { return "exact_key" }

func (ExactKeyMatcher) Match(rec Record, candidates []stock.StockItem) (stock.StockItem, bool) {
	key := strings.TrimSpace(rec.MaterialKey)
	if key == "" {
		return stock.StockItem{}, false
	}
	for _, item := range candidates {
		if strings.EqualFold(key, strings.TrimSpace(item.SKU)) {
			return item, true
		}
	}
	return stock.StockItem{}, false
}

// CategoryMatcher applies substring patterns configured for the record's category.
// A pattern applies when it occurs in the record's name or key, and selects the
// first item whose name contains it.
type CategoryMatcher struct {
	Patterns []CategoryPattern
}

func (CategoryMatcher) Name() string { return "category_pattern" }

func (m CategoryMatcher) Match(rec Record, candidates []stock.StockItem) (stock.StockItem, bool) {
	subject := strings.ToLower(rec.Name + " " + rec.MaterialKey)

	for _, cp := range m.Patterns {
		if !strings.EqualFold(strings.TrimSpace(cp.Category), strings.TrimSpace(rec.Category)) {
			continue
		}
		for _, p := range cp.Patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" || !strings.Contains(subject, p) {
				continue
			}
			for _, item := range candidates {
				if strings.Contains(strings.ToLower(item.Name), p) {
					return item, true
				}
			}
		}
	}
	return stock.StockItem{}, false
}

// NameMatcher is the generic fallback: one name contains the other.
// Names shorter than MinLength never match.
type NameMatcher struct {
	MinLength int
}

func (NameMatcher) Name() string { return "name_substring" }

func (m NameMatcher) Match(rec Record, candidates []stock.StockItem) (stock.StockItem, bool) {
	name := strings.ToLower(strings.TrimSpace(rec.Name))
	if len(name) < m.MinLength {
		return stock.StockItem{}, false
	}
	for _, item := range candidates {
		itemName := strings.ToLower(strings.TrimSpace(item.Name))
		if len(itemName) < m.MinLength {
			continue
		}
		if strings.Contains(itemName, name) || strings.Contains(name, itemName) {
			return item, true
		}
	}
	return stock.StockItem{}, false
}
