package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"threadline/api"
	"threadline/models"
	"threadline/session"
	"threadline/store"
)

const (
	feedCommunities       = 5
	feedPostsPerCommunity = 4
	feedGeneralLimit      = 20
)

type PostService struct {
	base
}

// Vote applies a vote optimistically, sends it upstream and rolls it back if
// the upstream call fails. Votes on the same post within a session are
// applied one at a time.
func (s *PostService) Vote(ctx context.Context, sess *session.Session, postID int64, communityID string, value int) (models.Post, error) {
	v, err := store.ParseVoteValue(value)
	if err != nil {
		return models.Post{}, invalid("vote_value", err.Error())
	}
	if err := requireUser(sess); err != nil {
		return models.Post{}, err
	}

	release := sess.Posts.LockPost(postID)
	defer release()

	post, ok := sess.Posts.FindPost(postID)
	if !ok {
		post = models.Post{ID: postID, CommunityID: communityID}
	}
	outcome, updated := sess.Posts.ApplyVote(post, communityID, v)
	s.metrics.VoteApplied(outcome.Action.String())
	s.publishPosts(sess)

	res, err := s.conn(sess).Vote(ctx, postID, int(v))
	if err != nil {
		sess.Posts.RevertVote(postID, updated.CommunityID, outcome)
		if !sess.Authenticated() {
			sess.Posts.ClearPostVotes()
		}
		s.metrics.VoteRolledBack()
		s.publishPosts(sess)
		s.log.Warn("vote rolled back",
			zap.String("session_id", sess.ID),
			zap.Int64("post_id", postID),
			zap.Stringer("action", outcome.Action),
			zap.Error(err))
		return models.Post{}, fmt.Errorf("vote on post %d: %w", postID, err)
	}

	if outcome.Vote != nil && res.ID != 0 {
		sess.Posts.ConfirmVote(postID, res.ID)
	}
	if res.Removed != (outcome.Action == store.VoteRemoved) {
		s.log.Info("vote outcome differs from upstream",
			zap.Int64("post_id", postID),
			zap.Stringer("action", outcome.Action),
			zap.Bool("removed", res.Removed))
		sess.Posts.SetUpdateRequired(true)
	}
	return updated, nil
}

type CreatePostInput struct {
	CommunityID string
	Title       string
	Body        string
	Image       *api.Image
}

// CreatePost creates a post and drops every cached community list.
func (s *PostService) CreatePost(ctx context.Context, sess *session.Session, in CreatePostInput) (*models.Post, error) {
	if err := requireUser(sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CommunityID) == "" {
		return nil, invalid("community_id", "community is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "title is required")
	}

	post, err := s.conn(sess).CreatePost(ctx, api.CreatePostRequest{
		CommunityID: in.CommunityID,
		Title:       in.Title,
		Body:        in.Body,
		Image:       in.Image,
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	sess.Posts.InvalidateAll()
	s.metrics.CacheInvalidated()
	s.publishPosts(sess)
	return post, nil
}

// DeletePost deletes a post upstream, then removes it from the session.
func (s *PostService) DeletePost(ctx context.Context, sess *session.Session, postID int64) error {
	if err := requireUser(sess); err != nil {
		return err
	}
	post, _ := sess.Posts.FindPost(postID)

	if err := s.conn(sess).DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}

	if sess.Posts.RemovePost(postID, post.CommunityID) {
		s.publishPosts(sess)
	}
	return nil
}

// CommunityPosts returns the posts of communityID, from the session cache
// when possible. The vote set is per community, so a signed-in user's votes
// are reloaded on every call.
func (s *PostService) CommunityPosts(ctx context.Context, sess *session.Session, communityID string, force bool) ([]models.Post, error) {
	if !force && !sess.Posts.UpdateRequired() {
		if cached, ok := sess.Posts.CachedPosts(communityID); ok {
			sess.Posts.SetPosts(cached)
			if sess.Authenticated() {
				s.loadVotes(ctx, sess, communityID)
			}
			s.publishPosts(sess)
			return cached, nil
		}
	}

	posts, err := s.conn(sess).ListPosts(ctx, communityID, 0)
	if err != nil {
		return nil, fmt.Errorf("list posts of %s: %w", communityID, err)
	}
	sess.Posts.SetCommunityPosts(communityID, posts)
	sess.Posts.SetUpdateRequired(false)

	if sess.Authenticated() {
		s.loadVotes(ctx, sess, communityID)
	}
	s.publishPosts(sess)
	return posts, nil
}

// CommunityVotes reloads the signed-in user's votes in communityID.
func (s *PostService) CommunityVotes(ctx context.Context, sess *session.Session, communityID string) ([]models.PostVote, error) {
	if err := requireUser(sess); err != nil {
		return nil, err
	}
	votes, err := s.conn(sess).MyVotes(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list votes in %s: %w", communityID, err)
	}
	sess.Posts.SetPostVotes(votes)
	s.publishPosts(sess)
	return votes, nil
}

func (s *PostService) loadVotes(ctx context.Context, sess *session.Session, communityID string) {
	votes, err := s.conn(sess).MyVotes(ctx, communityID)
	if err != nil {
		s.log.Warn("load post votes failed",
			zap.String("session_id", sess.ID),
			zap.String("community_id", communityID),
			zap.Error(err))
		return
	}
	sess.Posts.SetPostVotes(votes)
}

// Feed builds the home feed. A signed-in user with memberships sees the
// newest posts of their first communities; everyone else sees the newest
// posts overall.
func (s *PostService) Feed(ctx context.Context, sess *session.Session) ([]models.Post, error) {
	var ids []string
	if sess.Authenticated() {
		snippets, fetched := sess.Communities.Snippets()
		if !fetched {
			loaded, err := s.conn(sess).MySnippets(ctx)
			if err != nil {
				s.log.Warn("load snippets for feed failed", zap.String("session_id", sess.ID), zap.Error(err))
			} else {
				sess.Communities.SetSnippets(loaded)
				snippets = loaded
			}
		}
		for _, sn := range snippets {
			if len(ids) == feedCommunities {
				break
			}
			ids = append(ids, sn.CommunityID)
		}
	}

	var (
		posts []models.Post
		err   error
	)
	if len(ids) > 0 {
		posts, err = s.communityFeed(ctx, sess, ids)
	} else {
		posts, err = s.conn(sess).ListPosts(ctx, "", feedGeneralLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}

	sess.Posts.SetPosts(posts)
	s.publishPosts(sess)
	return posts, nil
}

func (s *PostService) communityFeed(ctx context.Context, sess *session.Session, ids []string) ([]models.Post, error) {
	conn := s.conn(sess)
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu  sync.Mutex
		all []models.Post
	)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			posts, err := conn.ListPosts(gctx, id, feedPostsPerCommunity)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, posts...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

// GetPost returns a post and makes it the selected post.
func (s *PostService) GetPost(ctx context.Context, sess *session.Session, postID int64) (models.Post, error) {
	if !sess.Posts.UpdateRequired() {
		if sp, ok := sess.Posts.SelectedPost(); ok && sp.ID == postID {
			return sp, nil
		}
		if p, ok := sess.Posts.FindPost(postID); ok {
			sess.Posts.SelectPost(p)
			s.publishPosts(sess)
			return p, nil
		}
	}

	post, err := s.conn(sess).GetPost(ctx, postID)
	if err != nil {
		if api.StatusCode(err) == http.StatusNotFound {
			sess.Posts.RemovePost(postID, "")
		}
		return models.Post{}, fmt.Errorf("get post %d: %w", postID, err)
	}
	sess.Posts.SelectPost(*post)
	s.publishPosts(sess)
	return *post, nil
}
