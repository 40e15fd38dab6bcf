package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threadline/services"
)

type createCommunityRequest struct {
	Name        string `json:"name" binding:"required"`
	PrivacyType string `json:"privacy_type"`
}

func (h *Handler) ListCommunities(c *gin.Context) {
	communities, err := h.svc.Communities.List(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err, "Error loading communities")
		return
	}
	c.JSON(http.StatusOK, communities)
}

func (h *Handler) CreateCommunity(c *gin.Context) {
	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Community name is required")
		return
	}

	community, err := h.svc.Communities.Create(c.Request.Context(), currentSession(c), services.CreateCommunityInput{
		Name:        req.Name,
		PrivacyType: req.PrivacyType,
	})
	if err != nil {
		h.respondError(c, err, "Error creating community")
		return
	}
	c.JSON(http.StatusCreated, community)
}

func (h *Handler) MyCommunities(c *gin.Context) {
	snippets, err := h.svc.Communities.Snippets(c.Request.Context(), currentSession(c), c.Query("refresh") == "true")
	if err != nil {
		h.respondError(c, err, "Error loading your communities")
		return
	}
	c.JSON(http.StatusOK, snippets)
}

func (h *Handler) GetCommunity(c *gin.Context) {
	community, err := h.svc.Communities.Open(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Community not found")
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *Handler) UpdateCommunityImage(c *gin.Context) {
	img, closer, err := formImage(c)
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer closer.Close()

	community, err := h.svc.Communities.UpdateImage(c.Request.Context(), currentSession(c), c.Param("id"), img)
	if err != nil {
		h.respondError(c, err, "Error updating community image")
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *Handler) JoinCommunity(c *gin.Context) {
	if err := h.svc.Communities.Join(c.Request.Context(), currentSession(c), c.Param("id")); err != nil {
		h.respondError(c, err, "Error joining community")
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

func (h *Handler) LeaveCommunity(c *gin.Context) {
	if err := h.svc.Communities.Leave(c.Request.Context(), currentSession(c), c.Param("id")); err != nil {
		h.respondError(c, err, "Error leaving community")
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": false})
}

func (h *Handler) ToggleMembership(c *gin.Context) {
	joined, err := h.svc.Communities.ToggleMembership(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Error updating membership")
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": joined})
}

func (h *Handler) CommunityPosts(c *gin.Context) {
	posts, err := h.svc.Posts.CommunityPosts(c.Request.Context(), currentSession(c), c.Param("id"), c.Query("refresh") == "true")
	if err != nil {
		h.respondError(c, err, "Error loading posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) CommunityVotes(c *gin.Context) {
	votes, err := h.svc.Posts.CommunityVotes(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Error loading votes")
		return
	}
	c.JSON(http.StatusOK, votes)
}
