package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/config"
)

const AccountIDKey = "account_id"

const sessionLookupTimeout = 2 * time.Second

// SessionKey builds the cache key a login stores its token under.
func SessionKey(token string) string { return "session:" + token }

// Auth guards editor routes: the bearer JWT must verify and its session key
// must still be live in the cache (logout and bans kill sessions there).
// Each authenticated request slides the session TTL forward so active
// editors are not logged out mid-session.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(token, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		lookupCtx, cancel := context.WithTimeout(ctx.Request.Context(), sessionLookupTimeout)
		defer cancel()
		live, err := c.Exists(lookupCtx, SessionKey(token))
		if err != nil || !live {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		// Best-effort renewal; an error here only means the session keeps
		// its original deadline.
		_ = c.Expire(lookupCtx, SessionKey(token), sec.JWTTTLH)

		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, bool) {
	header := ctx.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// GetAccountID returns the authenticated account ID, or 0 outside Auth.
func GetAccountID(c *gin.Context) int64 {
	if v, ok := c.Get(AccountIDKey); ok {
		return v.(int64)
	}
	return 0
}
