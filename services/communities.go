package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"threadline/api"
	"threadline/models"
	"threadline/session"
)

var communityName = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)

type CommunityService struct {
	base
}

func (s *CommunityService) List(ctx context.Context, sess *session.Session) ([]models.Community, error) {
	communities, err := s.conn(sess).ListCommunities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return communities, nil
}

// Snippets returns the signed-in user's memberships, fetching them once per
// session unless force is set.
func (s *CommunityService) Snippets(ctx context.Context, sess *session.Session, force bool) ([]models.CommunitySnippet, error) {
	if err := requireUser(sess); err != nil {
		return nil, err
	}
	if snippets, fetched := sess.Communities.Snippets(); fetched && !force {
		return snippets, nil
	}

	snippets, err := s.conn(sess).MySnippets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snippets: %w", err)
	}
	sess.Communities.SetSnippets(snippets)
	s.publishCommunities(sess)
	return snippets, nil
}

// Open loads a community and makes it the current one. A community that no
// longer exists stops being current.
func (s *CommunityService) Open(ctx context.Context, sess *session.Session, id string) (models.Community, error) {
	community, err := s.conn(sess).GetCommunity(ctx, id)
	if err != nil {
		if api.StatusCode(err) == http.StatusNotFound && sess.Communities.Current().ID == id {
			sess.Communities.ClearCurrent()
			s.publishCommunities(sess)
		}
		return models.Community{}, fmt.Errorf("get community %s: %w", id, err)
	}
	if community.PrivacyType == "" {
		community.PrivacyType = models.PrivacyPublic
	}
	sess.Communities.SetCurrent(*community)
	s.publishCommunities(sess)
	return *community, nil
}

type CreateCommunityInput struct {
	Name        string
	PrivacyType string
}

func (s *CommunityService) Create(ctx context.Context, sess *session.Session, in CreateCommunityInput) (*models.Community, error) {
	if err := requireUser(sess); err != nil {
		return nil, err
	}
	if !communityName.MatchString(in.Name) {
		return nil, invalid("name", "Community names must be 3 to 21 characters and can only contain letters, numbers, or underscores")
	}
	switch in.PrivacyType {
	case "":
		in.PrivacyType = models.PrivacyPublic
	case models.PrivacyPublic, models.PrivacyRestricted, models.PrivacyPrivate:
	default:
		return nil, invalid("privacy_type", "unknown privacy type")
	}

	community, err := s.conn(sess).CreateCommunity(ctx, api.CreateCommunityRequest{ID: in.Name, PrivacyType: in.PrivacyType})
	if err != nil {
		return nil, fmt.Errorf("create community %s: %w", in.Name, err)
	}

	// the creator is a member and moderator upstream
	snippets, _ := sess.Communities.Snippets()
	sess.Communities.SetSnippets(append(snippets, models.CommunitySnippet{
		CommunityID: community.ID,
		IsModerator: true,
		ImageURL:    community.ImageURL,
	}))
	s.publishCommunities(sess)
	return community, nil
}

// UpdateImage replaces the community image and refreshes the session's copy.
func (s *CommunityService) UpdateImage(ctx context.Context, sess *session.Session, id string, img *api.Image) (*models.Community, error) {
	if err := requireUser(sess); err != nil {
		return nil, err
	}
	if img == nil || (img.File == nil && img.URL == "") {
		return nil, invalid("image", "an image file or image_url is required")
	}

	community, err := s.conn(sess).UpdateCommunityImage(ctx, id, img)
	if err != nil {
		return nil, fmt.Errorf("update community %s: %w", id, err)
	}
	if sess.Communities.Current().ID == community.ID {
		sess.Communities.SetCurrent(*community)
	}
	s.publishCommunities(sess)
	return community, nil
}

// Join joins communityID. The community's image comes from the session's
// visited copy when there is one.
func (s *CommunityService) Join(ctx context.Context, sess *session.Session, communityID string) error {
	if err := requireUser(sess); err != nil {
		return err
	}
	community, ok := sess.Communities.Visited(communityID)
	if !ok {
		community = models.Community{ID: communityID}
		s.log.Debug("joining unvisited community", zap.String("community_id", communityID))
	}

	if err := s.conn(sess).JoinCommunity(ctx, communityID); err != nil {
		return fmt.Errorf("join %s: %w", communityID, err)
	}
	sess.Communities.Joined(community)
	s.publishCommunities(sess)
	return nil
}

func (s *CommunityService) Leave(ctx context.Context, sess *session.Session, communityID string) error {
	if err := requireUser(sess); err != nil {
		return err
	}
	if err := s.conn(sess).LeaveCommunity(ctx, communityID); err != nil {
		return fmt.Errorf("leave %s: %w", communityID, err)
	}
	sess.Communities.Left(communityID)
	s.publishCommunities(sess)
	return nil
}

// ToggleMembership joins the community or leaves it, depending on the
// session's current snippets. It reports whether the user is now a member.
func (s *CommunityService) ToggleMembership(ctx context.Context, sess *session.Session, id string) (bool, error) {
	if err := requireUser(sess); err != nil {
		return false, err
	}
	if sess.Communities.IsMember(id) {
		if err := s.Leave(ctx, sess, id); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.Join(ctx, sess, id); err != nil {
		return false, err
	}
	return true, nil
}
