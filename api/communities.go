package api

import (
	"context"
	"net/http"
	"net/url"

	"threadline/models"
)

type CreateCommunityRequest struct {
	ID          string `json:"id"`
	PrivacyType string `json:"privacyType"`
}

func (cn *Conn) ListCommunities(ctx context.Context) ([]models.Community, error) {
	var out []models.Community
	if err := cn.get(ctx, "/communities/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cn *Conn) CreateCommunity(ctx context.Context, req CreateCommunityRequest) (*models.Community, error) {
	var out models.Community
	if err := cn.sendJSON(ctx, http.MethodPost, "/communities/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) GetCommunity(ctx context.Context, id string) (*models.Community, error) {
	var out models.Community
	if err := cn.get(ctx, "/communities/"+url.PathEscape(id)+"/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCommunityImage replaces the community image with an uploaded file or
// an image URL.
func (cn *Conn) UpdateCommunityImage(ctx context.Context, id string, img *Image) (*models.Community, error) {
	r, err := multipartRequest(http.MethodPatch, "/communities/"+url.PathEscape(id)+"/", nil, img)
	if err != nil {
		return nil, err
	}
	var out models.Community
	if err := cn.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) MySnippets(ctx context.Context) ([]models.CommunitySnippet, error) {
	var out []models.CommunitySnippet
	if err := cn.get(ctx, "/communities/user/snippets/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cn *Conn) JoinCommunity(ctx context.Context, id string) error {
	return cn.sendJSON(ctx, http.MethodPost, "/communities/"+url.PathEscape(id)+"/join/", nil, nil)
}

func (cn *Conn) LeaveCommunity(ctx context.Context, id string) error {
	return cn.sendJSON(ctx, http.MethodPost, "/communities/"+url.PathEscape(id)+"/leave/", nil, nil)
}
