package services

import (
	"context"
	"fmt"
	"strings"

	"threadline/api"
	"threadline/models"
	"threadline/session"
)

type CommentService struct {
	base
}

func (s *CommentService) List(ctx context.Context, sess *session.Session, postID int64) ([]models.Comment, error) {
	comments, err := s.conn(sess).ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", postID, err)
	}
	if post, ok := sess.Posts.FindPost(postID); ok {
		for i := range comments {
			comments[i].PostTitle = post.Title
		}
	}
	return comments, nil
}

func (s *CommentService) Create(ctx context.Context, sess *session.Session, postID int64, communityID, text string) (*models.Comment, error) {
	if err := requireUser(sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text", "comment cannot be empty")
	}
	if communityID == "" {
		if post, ok := sess.Posts.FindPost(postID); ok {
			communityID = post.CommunityID
		}
	}

	comment, err := s.conn(sess).CreateComment(ctx, api.CreateCommentRequest{
		PostID:      postID,
		CommunityID: communityID,
		Text:        text,
	})
	if err != nil {
		return nil, fmt.Errorf("create comment on post %d: %w", postID, err)
	}

	sess.Posts.AdjustCommentCount(postID, 1)
	s.publishPosts(sess)
	return comment, nil
}

// Delete removes a comment. postID names the post whose comment count drops;
// zero means the selected post.
func (s *CommentService) Delete(ctx context.Context, sess *session.Session, commentID, postID int64) error {
	if err := requireUser(sess); err != nil {
		return err
	}
	if err := s.conn(sess).DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}

	if postID == 0 {
		if sp, ok := sess.Posts.SelectedPost(); ok {
			postID = sp.ID
		}
	}
	if postID != 0 {
		sess.Posts.AdjustCommentCount(postID, -1)
		s.publishPosts(sess)
	}
	return nil
}
