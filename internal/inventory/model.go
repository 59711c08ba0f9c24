package inventory

import (
	"errors"
	"time"

	"galway/internal/olive"
)

type ItemType string

const (
	ItemSeed   ItemType = "seed"
	ItemBranch ItemType = "branch"
)

var (
	ErrNoSeeds          = errors.New("no seeds available")
	ErrInventoryFull    = errors.New("inventory is full")
	ErrItemNotFound     = errors.New("item not found")
	ErrActiveBranch     = errors.New("the active branch cannot be burnt")
	ErrNotBranch        = errors.New("only branches can be activated")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrUnknownSortOrder = errors.New("unknown sort order")
	ErrSeedStackFull    = errors.New("seed stack is full")
)

const (
	// MaxSeedGrant bounds a single seed request.
	MaxSeedGrant = 1000
	// MaxSeedStack bounds the seed item's quantity.
	MaxSeedStack = 99999
)

type Item struct {
	ID        string                `json:"id"`
	Type      ItemType              `json:"type"`
	Branch    *olive.BranchArtifact `json:"data,omitempty"`
	Quantity  int                   `json:"quantity,omitempty"`
	Rarity    *olive.RarityInfo     `json:"rarity,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortRarity SortOrder = "rarity"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	case SortRarity:
		return SortRarity, nil
	}
	return "", ErrUnknownSortOrder
}

// Limits caps the grid: ItemsPerPage slots per page, MaxPages pages.
type Limits struct {
	ItemsPerPage int
	MaxPages     int
	MaxItems     int
}

type Page struct {
	Items       []Item `json:"items"`
	Page        int    `json:"page"`
	TotalPages  int    `json:"totalPages"`
	TotalItems  int    `json:"totalItems"`
	MaxItems    int    `json:"maxItems"`
	SeedCount   int    `json:"seedCount"`
	BranchCount int    `json:"branchCount"`
}

type fileState struct {
	Users map[string][]Item `json:"users"`
}

func cloneItems(src []Item) []Item {
	out := make([]Item, len(src))
	copy(out, src)
	return out
}
