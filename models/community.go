package models

import "time"

const (
	PrivacyPublic     = "public"
	PrivacyRestricted = "restricted"
	PrivacyPrivate    = "private"
)

type Community struct {
	ID              string     `json:"id"`
	CreatorID       int64      `json:"creatorId"`
	NumberOfMembers int        `json:"numberOfMembers"`
	PrivacyType     string     `json:"privacyType"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	ImageURL        string     `json:"imageURL,omitempty"`
}

// CommunitySnippet is the lightweight membership record kept for the
// signed-in user.
type CommunitySnippet struct {
	CommunityID string `json:"communityId"`
	IsModerator bool   `json:"isModerator"`
	ImageURL    string `json:"imageURL"`
}
