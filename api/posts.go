package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"threadline/models"
)

type CreatePostRequest struct {
	CommunityID string
	Title       string
	Body        string
	Image       *Image
}

// ListPosts returns the newest posts, optionally restricted to one community.
// A limit of zero means no limit.
func (cn *Conn) ListPosts(ctx context.Context, communityID string, limit int) ([]models.Post, error) {
	q := url.Values{}
	if communityID != "" {
		q.Set("community_id", communityID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.Post
	if err := cn.get(ctx, "/posts/", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cn *Conn) CreatePost(ctx context.Context, req CreatePostRequest) (*models.Post, error) {
	fields := []formField{
		{"community_id", req.CommunityID},
		{"title", req.Title},
	}
	if req.Body != "" {
		fields = append(fields, formField{"body", req.Body})
	}
	r, err := multipartRequest(http.MethodPost, "/posts/create/", fields, req.Image)
	if err != nil {
		return nil, err
	}
	var out models.Post
	if err := cn.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var out models.Post
	if err := cn.get(ctx, postPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) DeletePost(ctx context.Context, id int64) error {
	return cn.do(ctx, &request{method: http.MethodDelete, path: postPath(id)}, nil)
}

// Vote sends a toggle-style vote: repeating the current value removes it.
func (cn *Conn) Vote(ctx context.Context, postID int64, value int) (*models.VoteResult, error) {
	var out models.VoteResult
	if err := cn.sendJSON(ctx, http.MethodPost, postPath(postID)+"vote/", map[string]int{"vote_value": value}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyVotes returns the signed-in user's votes on posts of communityID.
func (cn *Conn) MyVotes(ctx context.Context, communityID string) ([]models.PostVote, error) {
	var out []models.PostVote
	if err := cn.get(ctx, "/posts/votes/", url.Values{"community_id": {communityID}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10) + "/"
}
