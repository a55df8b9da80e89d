package domain

import "time"

// NetworkTypes lists the accepted social network identifiers.
var NetworkTypes = []string{
	"linkedin", "github", "gitlab", "twitter", "facebook", "instagram", "youtube",
	"medium", "dev_to", "stackoverflow", "behance", "dribbble", "other",
}

// ContactTypes lists the accepted contact channel identifiers.
var ContactTypes = []string{
	"phone", "email", "telegram", "whatsapp", "viber", "skype", "discord",
	"slack", "wechat", "signal", "other",
}

// SocialNetwork is a link to a profile on an external network. A profile has
// at most one link per network type.
type SocialNetwork struct {
	ID          int64
	ProfileID   int64
	NetworkType string
	URL         string
	IsPrimary   bool
	CustomName  string
}

// DisplayName returns the custom name for "other" networks, the type otherwise.
func (s SocialNetwork) DisplayName() string {
	if s.NetworkType == "other" && s.CustomName != "" {
		return s.CustomName
	}
	return s.NetworkType
}

// ContactInfo is a way to reach the specialist. (type, value) is unique per profile.
type ContactInfo struct {
	ID          int64
	ProfileID   int64
	ContactType string
	Value       string
	IsPrimary   bool
	IsPublic    bool
	CustomName  string
	Label       string
	IsVerified  bool
	VerifiedAt  *time.Time
}
