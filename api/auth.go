package api

import (
	"context"
	"net/http"

	"threadline/models"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordResetResult struct {
	Message  string `json:"message"`
	ResetURL string `json:"reset_url,omitempty"`
}

func (cn *Conn) Register(ctx context.Context, req RegisterRequest) (*models.AuthResult, error) {
	var out models.AuthResult
	if err := cn.sendJSON(ctx, http.MethodPost, "/users/register/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) Login(ctx context.Context, req LoginRequest) (*models.AuthResult, error) {
	var out models.AuthResult
	if err := cn.sendJSON(ctx, http.MethodPost, "/users/login/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) Profile(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := cn.get(ctx, "/users/profile/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cn *Conn) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetResult, error) {
	var out PasswordResetResult
	if err := cn.sendJSON(ctx, http.MethodPost, "/users/password-reset/", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
