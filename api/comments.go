package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"threadline/models"
)

type CreateCommentRequest struct {
	PostID      int64  `json:"post_id"`
	CommunityID string `json:"community_id"`
	Text        string `json:"text"`
}

func (cn *Conn) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var out []models.Comment
	q := url.Values{"post_id": {strconv.FormatInt(postID, 10)}}
	if err := cn.get(ctx, "/comments/", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cn *Conn) CreateComment(ctx context.Context, req CreateCommentRequest) (*models.Comment, error) {
	var out models.Comment
	if err := cn.sendJSON(ctx, http.MethodPost, "/comments/create/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) DeleteComment(ctx context.Context, id int64) error {
	path := "/comments/" + strconv.FormatInt(id, 10) + "/delete/"
	return cn.do(ctx, &request{method: http.MethodDelete, path: path}, nil)
}
