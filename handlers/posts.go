package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"threadline/services"
)

type voteRequest struct {
	VoteValue   int    `json:"vote_value" binding:"required"`
	CommunityID string `json:"community_id"`
}

type createCommentRequest struct {
	Text        string `json:"text" binding:"required"`
	CommunityID string `json:"community_id"`
}

func (h *Handler) Feed(c *gin.Context) {
	posts, err := h.svc.Posts.Feed(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err, "Error loading feed")
		return
	}
	c.JSON(http.StatusOK, posts)
}

// CreatePost accepts a multipart form: community_id, title, body and an
// optional image file or image_url.
func (h *Handler) CreatePost(c *gin.Context) {
	img, closer, err := formImage(c)
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer closer.Close()

	post, err := h.svc.Posts.CreatePost(c.Request.Context(), currentSession(c), services.CreatePostInput{
		CommunityID: c.PostForm("community_id"),
		Title:       c.PostForm("title"),
		Body:        c.PostForm("body"),
		Image:       img,
	})
	if err != nil {
		h.respondError(c, err, "Error creating post")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) GetPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := h.svc.Posts.GetPost(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Posts.DeletePost(c.Request.Context(), currentSession(c), id); err != nil {
		h.respondError(c, err, "Error deleting post")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Vote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "vote_value must be 1 or -1")
		return
	}

	sess := currentSession(c)
	post, err := h.svc.Posts.Vote(c.Request.Context(), sess, id, req.CommunityID, req.VoteValue)
	if err != nil {
		h.respondError(c, err, "Error voting on post")
		return
	}
	vote, voted := sess.Posts.VoteFor(id)
	resp := gin.H{"post": post, "vote": nil}
	if voted {
		resp["vote"] = vote
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListComments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comments, err := h.svc.Comments.List(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err, "Error loading comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *Handler) CreateComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Comment text is required")
		return
	}

	comment, err := h.svc.Comments.Create(c.Request.Context(), currentSession(c), id, req.CommunityID, req.Text)
	if err != nil {
		h.respondError(c, err, "Error creating comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment takes the owning post from ?post_id=, defaulting to the
// selected post.
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var postID int64
	if raw := c.Query("post_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			badRequest(c, "Invalid post_id")
			return
		}
		postID = n
	}

	if err := h.svc.Comments.Delete(c.Request.Context(), currentSession(c), id, postID); err != nil {
		h.respondError(c, err, "Error deleting comment")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).State())
}
