package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"threadline/api"
	"threadline/middleware"
	"threadline/services"
	"threadline/session"
)

type Handler struct {
	svc      *services.Services
	sessions *session.Manager
	log      *zap.Logger
}

func New(svc *services.Services, sessions *session.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, sessions: sessions, log: logger.Named("handlers")}
}

// respondError maps a service error onto a status and {"error": message}.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, services.ErrLoginRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please log in to continue"})
	case errors.Is(err, api.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": api.UserMessage(err, fallback)})
	case api.StatusCode(err) != 0:
		c.JSON(api.StatusCode(err), gin.H{"error": api.UserMessage(err, fallback)})
	default:
		h.log.Warn("upstream unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": fallback})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// formImage reads the optional image of a multipart form: an "image" file or
// an "image_url" field. The returned closer must be called once the request
// has been forwarded.
func formImage(c *gin.Context) (*api.Image, io.Closer, error) {
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, err
		}
		return &api.Image{File: f, Filename: fh.Filename}, f, nil
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, err
	}
	if u := c.PostForm("image_url"); u != "" {
		return &api.Image{URL: u}, nopCloser{}, nil
	}
	return nil, nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func currentSession(c *gin.Context) *session.Session {
	return middleware.CurrentSession(c)
}
