// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxDisplayNameLen = 36
	MaxGameIDLen      = 64
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrGameIDEmpty        = errors.New("game id empty")
	ErrGameIDTooLong      = errors.New("game id too long")
)

type (
	UserID string
	GameID string
)

// Profile is the public slice of a user shared with a matched partner.
type Profile struct {
	ID           UserID `json:"id"`
	DisplayName  string `json:"displayName"`
	Avatar       string `json:"avatar,omitempty"`
	VideoEnabled bool   `json:"videoEnabled"`
}

// NewProfile is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewProfile(id UserID, displayName, avatar string) (*Profile, error) {
	if len(displayName) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Profile{ID: id, DisplayName: displayName, Avatar: avatar}, nil
}

// ValidGameID rejects ids the queue would otherwise key garbage under.
func ValidGameID(g GameID) error {
	if len(g) == 0 {
		return ErrGameIDEmpty
	}
	if len(g) > MaxGameIDLen {
		return ErrGameIDTooLong
	}
	return nil
}
