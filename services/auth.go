package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"threadline/api"
	"threadline/models"
	"threadline/session"
)

const minPasswordLength = 6

type AuthService struct {
	base
}

type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

func (s *AuthService) Register(ctx context.Context, sess *session.Session, in RegisterInput) (*models.User, error) {
	if err := validEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, invalid("confirm_password", "Passwords do not match")
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password", "Password must be at least 6 characters")
	}
	if in.Username == "" {
		in.Username, _, _ = strings.Cut(in.Email, "@")
	}

	res, err := s.client.Anonymous().Register(ctx, api.RegisterRequest{
		Email:     in.Email,
		Username:  in.Username,
		Password:  in.Password,
		Password2: in.ConfirmPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", in.Email, err)
	}
	return s.signIn(sess, res), nil
}

func (s *AuthService) Login(ctx context.Context, sess *session.Session, email, password string) (*models.User, error) {
	if err := validEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password", "Password is required")
	}

	res, err := s.client.Anonymous().Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", email, err)
	}
	return s.signIn(sess, res), nil
}

func (s *AuthService) signIn(sess *session.Session, res *models.AuthResult) *models.User {
	// a different user must not inherit the previous user's caches
	if prev := sess.User(); prev != nil && prev.ID != res.User.ID {
		sess.ClearAuth()
		sess.Posts.Reset()
	}
	sess.SetAuth(res.User, session.Tokens{Access: res.Access, Refresh: res.Refresh})
	s.log.Info("signed in", zap.String("session_id", sess.ID), zap.Int64("user_id", res.User.ID))
	s.publishUser(sess)
	return sess.User()
}

// Me verifies the session's user against the profile endpoint. A session
// whose tokens no longer work is signed out.
func (s *AuthService) Me(ctx context.Context, sess *session.Session) (*models.User, error) {
	if !sess.Authenticated() {
		return nil, ErrLoginRequired
	}

	user, err := s.conn(sess).Profile(ctx)
	if err != nil {
		if sess.Authenticated() && api.StatusCode(err) != 0 {
			sess.ClearAuth()
		}
		s.publishUser(sess)
		return nil, fmt.Errorf("verify session: %w", err)
	}
	sess.SetUser(*user)
	return sess.User(), nil
}

// Logout signs the session out. Post lists stay; votes and memberships go.
func (s *AuthService) Logout(sess *session.Session) {
	sess.ClearAuth()
	s.publishUser(sess)
	s.publishPosts(sess)
	s.publishCommunities(sess)
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*api.PasswordResetResult, error) {
	if err := validEmail(email); err != nil {
		return nil, err
	}
	res, err := s.client.Anonymous().RequestPasswordReset(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("password reset for %s: %w", email, err)
	}
	return res, nil
}

func validEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return invalid("email", "Please enter a valid email")
	}
	return nil
}
