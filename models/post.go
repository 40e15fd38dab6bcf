package models

import "time"

type Post struct {
	ID                 int64     `json:"id"`
	CommunityID        string    `json:"communityId"`
	CommunityImageURL  string    `json:"communityImageURL,omitempty"`
	CreatorID          string    `json:"creatorId"`
	CreatorDisplayText string    `json:"creatorDisplayText,omitempty"`
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	ImageURL           string    `json:"imageURL,omitempty"`
	NumberOfComments   int       `json:"numberOfComments"`
	VoteStatus         int       `json:"voteStatus"` // aggregate score
	CreatedAt          time.Time `json:"createdAt"`
}
