package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"threadline/models"
	"threadline/session"
)

func testRepo(t *testing.T, secret string) *SessionRepository {
	t.Helper()
	sealer, err := session.NewSealer(secret)
	require.NoError(t, err)
	return NewSessionRepository(nil, sealer)
}

func TestSessionDoc_RoundTripThroughBSON(t *testing.T) {
	r := testRepo(t, "a-very-long-session-secret")
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &session.Record{
		ID:        "3f2a6c1e-2f43-4b8e-9d55-0f5b1f1f9c11",
		User:      &models.User{ID: 7, Username: "gopher", Email: "g@example.com"},
		Tokens:    session.Tokens{Access: "access-token", Refresh: "refresh-token"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc, err := r.toDoc(rec)
	require.NoError(t, err)
	assert.NotEqual(t, "access-token", doc.AccessToken)
	assert.NotEqual(t, "refresh-token", doc.RefreshToken)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded sessionDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got, err := r.fromDoc(decoded)
	require.NoError(t, err)
	assert.Equal(t, rec.Tokens, got.Tokens)
	assert.Equal(t, "gopher", got.User.Username)
	assert.True(t, now.Equal(got.CreatedAt))
}

func TestSessionDoc_OtherSecretSignsOut(t *testing.T) {
	doc, err := testRepo(t, "a-very-long-session-secret").toDoc(&session.Record{
		ID:     "id",
		User:   &models.User{ID: 7},
		Tokens: session.Tokens{Access: "a", Refresh: "r"},
	})
	require.NoError(t, err)

	got, err := testRepo(t, "rotated-session-secret-value").fromDoc(doc)
	require.NoError(t, err)
	assert.Nil(t, got.User)
	assert.Equal(t, session.Tokens{}, got.Tokens)
}
