package auth

import "time"

type Role string

const (
	RoleGuest       Role = "guest"
	RoleOperative   Role = "operative"
	RoleContributor Role = "contributor"
	RoleBetaTester  Role = "beta-tester"
	RoleModerator   Role = "moderator"
)

type User struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"passwordHash"`
	Role                Role      `json:"role"`
	IDNo                string    `json:"idNo"`
	EmailVerified       bool      `json:"emailVerified"`
	VerificationSkipped bool      `json:"verificationSkipped,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Public is the user as exposed over the API.
type Public struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	IDNo          string `json:"idNo"`
	Onset         string `json:"onset"`
	EmailVerified bool   `json:"isEmailVerified"`
}

func (u User) Public() Public {
	return Public{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		IDNo:          u.IDNo,
		Onset:         u.CreatedAt.Format("01/02/2006"),
		EmailVerified: u.EmailVerified,
	}
}

type VerificationChallenge struct {
	Email       string    `json:"email"`
	CodeHash    string    `json:"codeHash"`
	ExpiresAt   time.Time `json:"expiresAt"`
	RequestedAt time.Time `json:"requestedAt"`
	Attempts    int       `json:"attempts"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TokenHash string    `json:"tokenHash"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterInput mirrors the sign-up form.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
	Phone    string `json:"phone,omitempty"`
	Birthday string `json:"birthday,omitempty"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
}
