package identity

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a registered wallet owner.
type User struct {
	ID             string
	Email          string
	PasswordDigest string
	FirstName      string
	LastName       string
	Role           Role
	PINDigest      string
	Verified       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPIN reports whether the transaction PIN has been provisioned.
func (u User) HasPIN() bool { return u.PINDigest != "" }

// FullName is the display name used on transfer receipts.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Profile is the public view of a user; it never carries secrets.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"is_verified"`
	HasPIN     bool      `json:"has_pin"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		IsVerified: u.Verified,
		HasPIN:     u.HasPIN(),
		CreatedAt:  u.CreatedAt,
	}
}
