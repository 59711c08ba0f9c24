package inventory

import "sort"

// Sorted orders branches by the requested key. Seeds always lead.
// Rarity ranks by olive-count rarity, rarest first, newest breaking ties.
func Sorted(items []Item, order SortOrder) []Item {
	seeds := make([]Item, 0, 1)
	branches := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Type == ItemSeed {
			seeds = append(seeds, it)
			continue
		}
		branches = append(branches, it)
	}

	sort.SliceStable(branches, func(i, j int) bool {
		a, b := branches[i], branches[j]
		switch order {
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortRarity:
			ra, rb := countRank(a), countRank(b)
			if ra != rb {
				return ra > rb
			}
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return append(seeds, branches...)
}

func countRank(it Item) int {
	if it.Rarity == nil {
		return 0
	}
	return it.Rarity.Count.Rank()
}

// Paginate slices one page out of the sorted items. Pages past the cap are
// clamped to the last available one.
func Paginate(items []Item, page int, lim Limits) Page {
	out := Page{
		TotalItems: len(items),
		MaxItems:   lim.MaxItems,
	}
	for _, it := range items {
		if it.Type == ItemSeed {
			out.SeedCount += it.Quantity
		} else {
			out.BranchCount++
		}
	}

	perPage := lim.ItemsPerPage
	if perPage <= 0 {
		perPage = 16
	}
	total := (len(items) + perPage - 1) / perPage
	if lim.MaxPages > 0 && total > lim.MaxPages {
		total = lim.MaxPages
	}
	out.TotalPages = total

	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}
	out.Page = page

	start := (page - 1) * perPage
	if start >= len(items) {
		out.Items = []Item{}
		return out
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	out.Items = items[start:end]
	return out
}
