package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canopyshop/storefront/internal/domain/auth"
)

// apiKeyHeader carries the admin API key.
const apiKeyHeader = "X-API-Key"

// apiKeyNameKey is the gin context key holding the authenticated key's name.
const apiKeyNameKey = "apiKeyName"

// RequireAPIKey authenticates admin requests via HMAC-SHA256 hashed API keys.
// The presented key is hashed with the pepper, looked up, and compared in
// constant time against the stored hash.
func RequireAPIKey(apikeys auth.Repository, pepper []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			unauthorized(c)
			return
		}

		mac := hmac.New(sha256.New, pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := apikeys.FindByHash(c.Request.Context(), hex.EncodeToString(hash))
		if err != nil {
			unauthorized(c)
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			unauthorized(c)
			return
		}

		c.Set(apiKeyNameKey, info.Name)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		errorBody{Code: http.StatusUnauthorized, Message: "unauthorized"})
}

// apiKeyName returns the authenticated admin key's name for audit attribution.
func apiKeyName(c *gin.Context) string {
	return c.GetString(apiKeyNameKey)
}
