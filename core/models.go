package core

import "time"

// Account represents a registered identity
//
// This is the credential record - who someone is and how they prove it
type Account struct {
	ID           string    `json:"-"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Characters   []string  `json:"characters"`
	Campaigns    []string  `json:"campaigns"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the public-facing document linked to an account
type Profile struct {
	ID          string    `json:"-"`
	OwnerID     string    `json:"-"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Session represents an active login session
type Session struct {
	ID        string     `json:"id"`
	AccountID string     `json:"-"`
	TokenHash string     `json:"-"` // Never expose in JSON (security!)
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsExpiredAt reports whether the session has an absolute expiry at or before t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return s.ExpiresAt != nil && !t.Before(*s.ExpiresAt)
}

// Identity is what the authentication gate hands to gated handlers
type Identity struct {
	AccountID string `json:"-"`
	SessionID string `json:"-"`
}

// ProfileView is the account data that is safe to return to clients.
// It never carries internal identifiers or the password hash.
type ProfileView struct {
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Characters  []string  `json:"characters"`
	Campaigns   []string  `json:"campaigns"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProfileView merges an account and its profile into the client-safe view.
func NewProfileView(account *Account, profile *Profile) *ProfileView {
	view := &ProfileView{
		Email:      account.Email,
		Characters: account.Characters,
		Campaigns:  account.Campaigns,
		CreatedAt:  account.CreatedAt,
	}
	if view.Characters == nil {
		view.Characters = []string{}
	}
	if view.Campaigns == nil {
		view.Campaigns = []string{}
	}
	if profile != nil {
		view.DisplayName = profile.DisplayName
	}
	return view
}

// RegisterInput contains the data needed to register a new account
type RegisterInput struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	DisplayName          string `json:"display_name"`
	EULA                 bool   `json:"eula"`
}

// LoginInput contains the credentials for authentication
type LoginInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	KeepLoggedIn bool   `json:"keep_logged_in"`
}

// LoginResult contains the authenticated profile and the session binding
type LoginResult struct {
	Profile   *ProfileView `json:"profile"`
	ExpiresAt *time.Time   `json:"expires_at"`

	// SessionID is the identifier the client must present from now on.
	// It differs from the request's identifier only when rotation is enabled.
	SessionID string `json:"-"`
}
