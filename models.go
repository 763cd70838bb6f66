package access

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// UserProfile is the backend user record. It is created server-side on first
// provisioning and read-only afterwards; only explicit profile refreshes
// replace it.
type UserProfile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterPayload is the body for POST /api/auth/register.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (p RegisterPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required),
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// InviteExpirationChoices is the allowed set for invite expiration, in days.
var InviteExpirationChoices = []int{1, 3, 7, 14, 30}

// InviteCredential is a household-scoped, time-bounded membership code.
// Multiple credentials may coexist per household; the newest active,
// unexpired one is the household's current code.
type InviteCredential struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Code        string    `json:"invite_code"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired reports whether the credential's validity window has closed.
func (c InviteCredential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IssueInvitePayload is the body for POST /api/households/{id}/invites.
type IssueInvitePayload struct {
	ExpiresInDays int `json:"expires_in_days"`
}

func (p IssueInvitePayload) Validate() error {
	choices := make([]any, len(InviteExpirationChoices))
	for i, d := range InviteExpirationChoices {
		choices[i] = d
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.ExpiresInDays, validation.Required, validation.In(choices...)),
	)
}

// Household is the consumed household record shape. Membership itself is an
// external collaborator's concern.
type Household struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	CreatorID   int64      `json:"creator_id"`
	CreatorName string     `json:"creator_name,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Membership is the confirmation returned by POST /api/households/join/{code}.
type Membership struct {
	Message   string     `json:"message"`
	Household *Household `json:"household,omitempty"`
}
