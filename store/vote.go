package store

import (
	"errors"
	"fmt"

	"threadline/models"
)

type VoteValue int

const (
	Downvote VoteValue = -1
	Upvote   VoteValue = 1
)

var ErrInvalidVote = errors.New("vote value must be 1 or -1")

func ParseVoteValue(v int) (VoteValue, error) {
	switch VoteValue(v) {
	case Upvote, Downvote:
		return VoteValue(v), nil
	}
	return 0, fmt.Errorf("%w: got %d", ErrInvalidVote, v)
}

type VoteAction int

const (
	VoteCreated VoteAction = iota + 1
	VoteRemoved
	VoteFlipped
)

func (a VoteAction) String() string {
	switch a {
	case VoteCreated:
		return "created"
	case VoteRemoved:
		return "removed"
	case VoteFlipped:
		return "flipped"
	}
	return "unknown"
}

// VoteOutcome describes one optimistic vote transition.
type VoteOutcome struct {
	Action VoteAction
	// Delta is added to the post's VoteStatus.
	Delta int
	// Vote is the record after the transition; nil when the vote was removed.
	Vote *models.PostVote
	// Previous is the record before the transition; nil when there was none.
	Previous *models.PostVote
}

// ResolveVote computes the vote transition for a user pressing value on post
// while holding existing (nil when the user has not voted on it).
func ResolveVote(existing *models.PostVote, post models.Post, value VoteValue) VoteOutcome {
	v := int(value)
	if existing == nil {
		return VoteOutcome{
			Action: VoteCreated,
			Delta:  v,
			Vote: &models.PostVote{
				PostID:      post.ID,
				CommunityID: post.CommunityID,
				VoteValue:   v,
			},
		}
	}

	prev := *existing
	if existing.VoteValue == v {
		return VoteOutcome{Action: VoteRemoved, Delta: -v, Previous: &prev}
	}

	next := prev
	next.VoteValue = v
	return VoteOutcome{Action: VoteFlipped, Delta: 2 * v, Vote: &next, Previous: &prev}
}
