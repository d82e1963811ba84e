package domain

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownDomain = errors.New("unknown_domain")

// DomainLimit caps freemium accounts per company domain inside one
// tracking window. Freemail providers are effectively uncapped.
const (
	DomainLimit   = 2
	FreemailLimit = 999
)

// WindowMonths is the length of a tracking window.
const WindowMonths = 12

// FreemiumDomain tracks how many freemium slots a company domain has used
// in the current window. ResetDate is when the window rolls over.
type FreemiumDomain struct {
	Domain    string    `gorm:"primaryKey"`
	UserCount int       `gorm:"not null;default:0"`
	ResetDate time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FreemiumDomain) TableName() string { return "freemium_domains" }

// Availability is the answer to "can another freemium user register with
// this domain right now".
type Availability struct {
	Available  bool      `json:"available"`
	Domain     string    `json:"domain"`
	UsedSlots  int       `json:"usedSlots"`
	Limit      int       `json:"limit"`
	ResetDate  time.Time `json:"resetDate"`
	IsFreemail bool      `json:"isFreemail"`
}

// FreemiumUser is one occupant of a domain's freemium slot, exposed when a
// registration is rejected so the applicant knows who to ask for an invite.
type FreemiumUser struct {
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastSignedIn *time.Time `json:"lastSignedIn,omitempty"`
}

type Service interface {
	// ResetIfExpired rolls the domain into a new tracking window once the
	// old one has run out. Idempotent; a no-op for freemail domains and for
	// windows still in progress. Callers invoke it before reading
	// availability.
	ResetIfExpired(ctx context.Context, domain string) error

	// CheckAvailability reports whether the domain has a free slot. It is a
	// pure read: an expired window is only rolled over by ResetIfExpired.
	CheckAvailability(ctx context.Context, email string) (Availability, error)

	// IncrementCount consumes one slot for the domain, creating the
	// tracking row when needed. Freemail domains are never tracked.
	// Callers must check availability first; the count is not re-validated
	// here so admin-driven overrides stay possible.
	IncrementCount(ctx context.Context, email string) error

	// FreemiumUsers lists the users currently occupying the domain's slots.
	FreemiumUsers(ctx context.Context, domain string) ([]FreemiumUser, error)
}
