package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/models"
)

func TestResolveVote_NoExistingVote(t *testing.T) {
	post := models.Post{ID: 7, CommunityID: "golang", VoteStatus: 5}

	for _, value := range []VoteValue{Upvote, Downvote} {
		out := ResolveVote(nil, post, value)

		assert.Equal(t, VoteCreated, out.Action)
		assert.Equal(t, int(value), out.Delta)
		assert.Nil(t, out.Previous)
		require.NotNil(t, out.Vote)
		assert.Equal(t, int64(7), out.Vote.PostID)
		assert.Equal(t, "golang", out.Vote.CommunityID)
		assert.Equal(t, int(value), out.Vote.VoteValue)
	}
}

func TestResolveVote_SameValueTogglesOff(t *testing.T) {
	post := models.Post{ID: 7, CommunityID: "golang", VoteStatus: 6}
	existing := &models.PostVote{ID: 3, PostID: 7, CommunityID: "golang", VoteValue: 1}

	out := ResolveVote(existing, post, Upvote)

	assert.Equal(t, VoteRemoved, out.Action)
	assert.Equal(t, -1, out.Delta)
	assert.Nil(t, out.Vote)
	require.NotNil(t, out.Previous)
	assert.Equal(t, *existing, *out.Previous)
}

func TestResolveVote_OppositeValueFlips(t *testing.T) {
	post := models.Post{ID: 7, CommunityID: "golang", VoteStatus: 6}
	existing := &models.PostVote{ID: 3, PostID: 7, CommunityID: "golang", VoteValue: 1}

	out := ResolveVote(existing, post, Downvote)

	assert.Equal(t, VoteFlipped, out.Action)
	assert.Equal(t, -2, out.Delta)
	require.NotNil(t, out.Vote)
	assert.Equal(t, int64(3), out.Vote.ID, "flip keeps the record id")
	assert.Equal(t, -1, out.Vote.VoteValue)
	assert.Equal(t, 1, out.Previous.VoteValue, "previous is a copy")
	assert.Equal(t, 1, existing.VoteValue)
}

func TestParseVoteValue(t *testing.T) {
	v, err := ParseVoteValue(1)
	require.NoError(t, err)
	assert.Equal(t, Upvote, v)

	v, err = ParseVoteValue(-1)
	require.NoError(t, err)
	assert.Equal(t, Downvote, v)

	for _, bad := range []int{0, 2, -2} {
		_, err := ParseVoteValue(bad)
		assert.ErrorIs(t, err, ErrInvalidVote)
	}
}
