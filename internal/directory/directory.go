// Package directory is the read-only member listing built from the account,
// profile and inventory stores.
package directory

import (
	"errors"
	"strings"
	"time"

	"galway/internal/auth"
	"galway/internal/inventory"
	"galway/internal/olive"
	"galway/internal/profile"
)

var (
	ErrUnknownRole   = errors.New("unknown role filter")
	ErrUnknownMember = errors.New("member not found")
)

// Roles lists the filterable roles in display order.
var Roles = []auth.Role{
	auth.RoleOperative,
	auth.RoleContributor,
	auth.RoleBetaTester,
	auth.RoleModerator,
}

// Member is one row of the directory.
type Member struct {
	Username     string                `json:"username"`
	Role         auth.Role             `json:"role"`
	IDNo         string                `json:"idNo"`
	Onset        string                `json:"onset"`
	Bio          string                `json:"bio"`
	Country      string                `json:"country,omitempty"`
	City         string                `json:"city,omitempty"`
	JoinedAt     time.Time             `json:"joinDate"`
	LastSeen     time.Time             `json:"lastSeen"`
	ActiveBranch *olive.BranchArtifact `json:"oliveBranch,omitempty"`

	InventoryPublic bool `json:"inventoryPublic"`
}

// Card is the ID card view of a member. Inventory is nil unless the member
// has made it public.
type Card struct {
	Member
	Inventory []inventory.Item `json:"inventory,omitempty"`
}

// Listing is a filtered page of members plus per-role counts over everyone.
type Listing struct {
	Members []Member       `json:"users"`
	Total   int            `json:"total"`
	Roles   map[string]int `json:"roles"`
}

type Filter struct {
	Search string
	// Role is "" or "all" for no filter.
	Role string
}

type userSource interface {
	Users() []auth.User
	GetUserByUsername(username string) (auth.User, bool)
	LastSeen(userID string) (time.Time, bool)
}

type Directory struct {
	users     userSource
	profiles  *profile.FileRepo
	inventory *inventory.FileRepo
}

func New(users userSource, profiles *profile.FileRepo, inv *inventory.FileRepo) *Directory {
	return &Directory{users: users, profiles: profiles, inventory: inv}
}

func parseRole(s string) (auth.Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", nil
	}
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

func (d *Directory) member(u auth.User) Member {
	p := d.profiles.ForUser(u.ID).Get()
	seen, ok := d.users.LastSeen(u.ID)
	if !ok {
		seen = u.CreatedAt
	}
	pub := u.Public()
	return Member{
		Username:        u.Username,
		Role:            u.Role,
		IDNo:            u.IDNo,
		Onset:           pub.Onset,
		Bio:             p.Bio,
		Country:         p.Country,
		City:            p.City,
		JoinedAt:        u.CreatedAt,
		LastSeen:        seen,
		ActiveBranch:    p.ActiveBranch,
		InventoryPublic: p.InventoryPublic,
	}
}

// List matches usernames case-insensitively on a substring of f.Search and
// keeps only f.Role when set.
func (d *Directory) List(f Filter) (Listing, error) {
	role, err := parseRole(f.Role)
	if err != nil {
		return Listing{}, err
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))

	out := Listing{Members: []Member{}, Roles: map[string]int{}}
	for _, r := range Roles {
		out.Roles[string(r)] = 0
	}
	for _, u := range d.users.Users() {
		if _, counted := out.Roles[string(u.Role)]; counted {
			out.Roles[string(u.Role)]++
		}
		if term != "" && !strings.Contains(strings.ToLower(u.Username), term) {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		out.Members = append(out.Members, d.member(u))
	}
	out.Total = len(out.Members)
	return out, nil
}

func (d *Directory) Card(username string) (Card, error) {
	u, ok := d.users.GetUserByUsername(strings.TrimSpace(username))
	if !ok {
		return Card{}, ErrUnknownMember
	}
	c := Card{Member: d.member(u)}
	if c.InventoryPublic {
		c.Inventory = inventory.Sorted(d.inventory.ForUser(u.ID).Items(), inventory.SortNewest)
	}
	return c, nil
}
