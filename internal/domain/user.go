package domain

import (
	"time"

	"github.com/retailcore/user-management/internal/crypto"
)

// Tier is the loyalty classification of a user, derived from order history.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierPremium  Tier = "PREMIUM"
	TierAdmin    Tier = "ADMIN"
)

// ParseTier maps a stored tier string back to a Tier.
func ParseTier(value string) (Tier, error) {
	switch Tier(value) {
	case TierStandard, TierPremium, TierAdmin:
		return Tier(value), nil
	default:
		return "", NewInvalidInput("invalid user type: %s", value)
	}
}

// User is the identity aggregate. UserID is a one-way hash of the uppercased
// email address so storage keys never leak the raw address.
type User struct {
	UserID       string
	EmailAddress string
	FirstName    string
	LastName     string
	PasswordHash string
	Tier         Tier
	CreatedAt    time.Time
	LastActive   time.Time
	OrderCount   int
}

// NewUser constructs a Standard-tier user.
func NewUser(emailAddress, firstName, lastName, passwordHash string) User {
	return newUser(emailAddress, firstName, lastName, passwordHash, TierStandard)
}

// NewAdminUser constructs an Admin user. Admins are only created through
// explicit provisioning, never by tier promotion.
func NewAdminUser(emailAddress, firstName, lastName, passwordHash string) User {
	return newUser(emailAddress, firstName, lastName, passwordHash, TierAdmin)
}

func newUser(emailAddress, firstName, lastName, passwordHash string, tier Tier) User {
	now := time.Now().UTC()
	return User{
		UserID:       crypto.HashIdentifier(emailAddress),
		EmailAddress: emailAddress,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		Tier:         tier,
		CreatedAt:    now,
		LastActive:   now,
		OrderCount:   0,
	}
}

// OrderPlaced records a completed order. A Standard user crossing 10 orders
// is promoted to Premium; the promotion is irreversible and never produces
// an Admin.
func (u *User) OrderPlaced() {
	u.LastActive = time.Now().UTC()
	u.OrderCount++

	if u.Tier == TierStandard && u.OrderCount > 10 {
		u.Tier = TierPremium
	}
}

// DTO returns the externally visible projection of the user.
func (u User) DTO() UserDTO {
	return UserDTO{
		UserID:       u.UserID,
		EmailAddress: u.EmailAddress,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		OrderCount:   u.OrderCount,
	}
}

// UserDTO is the wire representation of a user.
type UserDTO struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
	OrderCount   int    `json:"orderCount"`
}

// UserCreatedEvent is published after a user is first persisted.
type UserCreatedEvent struct {
	UserID string `json:"userId"`
}

// CreatedEvent builds the integration event for this user.
func (u User) CreatedEvent() UserCreatedEvent {
	return UserCreatedEvent{UserID: u.UserID}
}
