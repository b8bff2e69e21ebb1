package models

import "time"

// Supported OAuth providers. The set is closed on purpose: adding a
// provider is a code change, not a configuration change.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
	ProviderApple    = "apple"
	ProviderGitHub   = "github"
)

// KnownProvider reports whether name is one of the supported providers.
func KnownProvider(name string) bool {
	switch name {
	case ProviderGoogle, ProviderFacebook, ProviderApple, ProviderGitHub:
		return true
	}
	return false
}

// OAuthIdentity is the normalized result of verifying a provider assertion.
type OAuthIdentity struct {
	Provider   string
	ExternalID string
	Email      string
	Name       string
}

// OAuthConnection links a provider identity to a local user.
type OAuthConnection struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
