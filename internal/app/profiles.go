package app

import "github.com/gamelink/randomconnect/internal/domain"

// ProfileSource resolves a user's public profile for the matched notification.
// Production wires the social-network profile service behind this; GuestProfiles
// is the fallback for users with no stored profile.
type ProfileSource interface {
	Profile(uid domain.UserID) domain.Profile
}

type GuestProfiles struct{}

func (GuestProfiles) Profile(uid domain.UserID) domain.Profile {
	name := string(uid)
	if len(name) > 8 {
		name = name[:8]
	}
	return domain.Profile{ID: uid, DisplayName: "guest-" + name}
}
