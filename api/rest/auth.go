package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/config"
	mw "github.com/hazuki-games/steelduel/server/middleware"
	"github.com/hazuki-games/steelduel/server/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const sessionWriteTimeout = 2 * time.Second

// AuthHandler issues and revokes editor session tokens.
type AuthHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login. An unknown username is enrolled
// on the spot; a known one must present the right password and not be
// banned.
func (h *AuthHandler) Login(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, status, msg := h.verifyOrEnroll(creds)
	if status != http.StatusOK {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sessionWriteTimeout)
	defer cancel()
	token, err := h.issueSession(ctx, acc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Last-login bookkeeping is best-effort.
	_ = h.db.Model(acc).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	}).Error

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
	})
}

// verifyOrEnroll resolves credentials to an account, creating one when
// the username is unseen. On failure it reports the HTTP status and
// message to send back.
func (h *AuthHandler) verifyOrEnroll(creds credentials) (*model.Account, int, string) {
	var acc model.Account
	err := h.db.Where("username = ?", creds.Username).First(&acc).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(creds.Password), 12)
		if hashErr != nil {
			return nil, http.StatusInternalServerError, "internal error"
		}
		acc = model.Account{
			Username:     creds.Username,
			PasswordHash: string(hash),
			Status:       1,
		}
		if createErr := h.db.Create(&acc).Error; createErr != nil {
			// A concurrent login can enroll the same name first.
			if isDuplicateKey(createErr) {
				return nil, http.StatusConflict, "username already taken"
			}
			return nil, http.StatusInternalServerError, "registration failed"
		}
	case err != nil:
		return nil, http.StatusInternalServerError, "internal error"
	default:
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(creds.Password)) != nil {
			return nil, http.StatusUnauthorized, "invalid credentials"
		}
		if acc.Status == 0 {
			return nil, http.StatusForbidden, "account banned"
		}
	}
	return &acc, http.StatusOK, ""
}

// issueSession mints a JWT and records it in the cache so the auth
// middleware can see live sessions with a plain Exists check.
func (h *AuthHandler) issueSession(ctx context.Context, accountID int64) (string, error) {
	token, err := mw.GenerateToken(accountID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(accountID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerFrom(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), sessionWriteTimeout)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(token))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. The presented token's
// session is revoked and a fresh one issued in its place.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sessionWriteTimeout)
	defer cancel()
	if old := bearerFrom(c); old != "" {
		_ = h.cache.Del(ctx, mw.SessionKey(old))
	}

	token, err := h.issueSession(ctx, accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func bearerFrom(c *gin.Context) string {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

// isDuplicateKey detects unique-constraint errors across the drivers
// we run against.
func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
