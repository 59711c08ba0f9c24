package profile

import (
	"time"

	"galway/internal/olive"
)

type Profile struct {
	Bio                  string                `json:"bio"`
	Phone                string                `json:"phone,omitempty"`
	Birthday             string                `json:"birthday,omitempty"`
	Country              string                `json:"country,omitempty"`
	City                 string                `json:"city,omitempty"`
	InventoryPublic      bool                  `json:"inventoryPublic"`
	ActiveBranch         *olive.BranchArtifact `json:"activeBranch,omitempty"`
	ActiveBranchID       string                `json:"activeBranchId,omitempty"`
	RegistrationComplete bool                  `json:"registrationComplete"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// Details are the optional sign-up fields copied into a new profile.
type Details struct {
	Bio      string
	Phone    string
	Birthday string
	Country  string
	City     string
}

// Patch holds the editable settings; nil fields are left unchanged.
type Patch struct {
	Bio      *string `json:"bio,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Birthday *string `json:"birthday,omitempty"`
	Country  *string `json:"country,omitempty"`
	City     *string `json:"city,omitempty"`
	// InventoryPublic shows the inventory on the member directory card.
	InventoryPublic *bool `json:"inventoryPublic,omitempty"`
}

type fileState struct {
	Users map[string]Profile `json:"users"`
}

func cloneProfile(p Profile) Profile {
	out := p
	if p.ActiveBranch != nil {
		b := *p.ActiveBranch
		out.ActiveBranch = &b
	}
	return out
}
