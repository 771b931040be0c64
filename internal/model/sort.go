package model

import "sort"

// SortOrder selects how the in-memory collection is ordered.
type SortOrder string

const (
	SortNewestFirst      SortOrder = "newest"
	SortOldestFirst      SortOrder = "oldest"
	SortRecentlyModified SortOrder = "modified"
)

func ParseSortOrder(s string) (SortOrder, bool) {
	switch SortOrder(s) {
	case SortNewestFirst, SortOldestFirst, SortRecentlyModified:
		return SortOrder(s), true
	case "":
		return SortNewestFirst, true
	}
	return SortNewestFirst, false
}

// SortItems orders items in place by the given order. Ties fall back to id
// so the ordering stays deterministic regardless of input order.
func SortItems(items []Item, order SortOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		switch order {
		case SortOldestFirst:
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
		case SortRecentlyModified:
			if a.ModifiedAt() != b.ModifiedAt() {
				return a.ModifiedAt() > b.ModifiedAt()
			}
		default:
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt > b.CreatedAt
			}
		}
		return a.ID < b.ID
	})
}
