// Package services implements what a browser session can do: vote, read and
// write posts and comments, manage community membership and sign in or out.
// Each operation updates the session's state and pushes the change to the
// session's live connections.
package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"threadline/api"
	"threadline/metrics"
	"threadline/session"
)

// ErrLoginRequired is returned for actions that need a signed-in user.
var ErrLoginRequired = errors.New("login required")

// ValidationError is a request rejected before anything was sent upstream.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

const (
	EventPosts       = "posts"
	EventCommunities = "communities"
	EventUser        = "user"
)

// Publisher pushes a state change to every live connection of a session.
type Publisher interface {
	Publish(sessionID, event string, payload any)
}

type Deps struct {
	Client    *api.Client
	Publisher Publisher
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Services struct {
	Posts       *PostService
	Communities *CommunityService
	Comments    *CommentService
	Auth        *AuthService
}

func New(d Deps) *Services {
	b := newBase(d)
	return &Services{
		Posts:       &PostService{base: b},
		Communities: &CommunityService{base: b},
		Comments:    &CommentService{base: b},
		Auth:        &AuthService{base: b},
	}
}

type base struct {
	client  *api.Client
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newBase(d Deps) base {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		client:  d.Client,
		pub:     d.Publisher,
		log:     logger.Named("services"),
		metrics: d.Metrics,
	}
}

func (b base) conn(sess *session.Session) *api.Conn {
	return b.client.Conn(sess)
}

func (b base) publishPosts(sess *session.Session) {
	if b.pub != nil {
		b.pub.Publish(sess.ID, EventPosts, sess.Posts.Snapshot())
	}
}

func (b base) publishCommunities(sess *session.Session) {
	if b.pub != nil {
		b.pub.Publish(sess.ID, EventCommunities, sess.Communities.Snapshot())
	}
}

func (b base) publishUser(sess *session.Session) {
	if b.pub != nil {
		b.pub.Publish(sess.ID, EventUser, sess.User())
	}
}

func requireUser(sess *session.Session) error {
	if !sess.Authenticated() {
		return ErrLoginRequired
	}
	return nil
}
