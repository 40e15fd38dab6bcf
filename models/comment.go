package models

import "time"

type Comment struct {
	ID                 int64     `json:"id"`
	CreatorID          int64     `json:"creatorId"`
	CreatorDisplayText string    `json:"creatorDisplayText"`
	CreatorPhotoURL    string    `json:"creatorPhotoURL"`
	CommunityID        string    `json:"communityId"`
	PostID             int64     `json:"postId"`
	PostTitle          string    `json:"postTitle,omitempty"`
	Text               string    `json:"text"`
	CreatedAt          time.Time `json:"createdAt"`
}
