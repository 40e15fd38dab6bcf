package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"threadline/session"
)

const (
	CookieName = "threadline_session"
	sessionKey = "session"
)

type CookieConfig struct {
	Secure bool
	MaxAge int // seconds
}

// Session attaches the caller's session to the request, starting a new one
// when the cookie is missing or names an unknown session.
func Session(mgr *session.Manager, cookie CookieConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		var sess *session.Session
		if id, err := c.Cookie(CookieName); err == nil && id != "" {
			s, err := mgr.Get(c.Request.Context(), id)
			switch {
			case err == nil:
				sess = s
			case errors.Is(err, session.ErrNotFound):
			default:
				logger.Error("load session failed", zap.String("session_id", id), zap.Error(err))
			}
		}
		if sess == nil {
			sess = mgr.Create()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, sess.ID, cookie.MaxAge, "/", "", cookie.Secure, true)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// CurrentSession returns the session attached by Session.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := CurrentSession(c)
		if sess == nil || !sess.Authenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication required",
				"message": "Please log in to continue",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
