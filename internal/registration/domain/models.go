package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	freemiumdomain "github.com/mi42hq/mi42/internal/freemium/domain"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

var (
	ErrEmailTaken      = errors.New("email_taken")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrWeakPassword    = errors.New("weak_password")
	ErrInvalidDomain   = errors.New("invalid_email_domain")
	ErrMissingConsent  = errors.New("terms_not_accepted")
	ErrMissingRequired = errors.New("missing_required_field")
)

// ExhaustedError carries who occupies the domain's freemium slots and when
// the window reopens, so the rejected applicant can act on it.
type ExhaustedError struct {
	Domain    string
	Users     []freemiumdomain.FreemiumUser
	ResetDate time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("freemium slots for %s exhausted until %s", e.Domain, e.ResetDate.Format(time.RFC3339))
}

// Input is a registration request.
type Input struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	CompanyName   string `json:"companyName"`
	AcceptedTerms bool   `json:"acceptedTerms"`
}

type Service interface {
	// Register validates the input, claims a freemium slot for the email's
	// domain, creates the user with the starting credit grant and sends the
	// verification mail.
	Register(ctx context.Context, in Input) (*userdomain.User, error)
}
