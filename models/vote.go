package models

// PostVote is the current user's vote on a single post. ID is zero until the
// upstream confirms the vote.
type PostVote struct {
	ID          int64  `json:"id"`
	PostID      int64  `json:"postId"`
	CommunityID string `json:"communityId"`
	VoteValue   int    `json:"voteValue"`
}

// VoteResult is the upstream reply to a vote request.
type VoteResult struct {
	Message     string `json:"message"`
	VoteStatus  int    `json:"vote_status"`
	Removed     bool   `json:"removed"`
	ID          int64  `json:"id"`
	PostID      int64  `json:"postId"`
	CommunityID string `json:"communityId"`
	VoteValue   int    `json:"voteValue"`
}
