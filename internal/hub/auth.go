package hub

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HashToken hashes a machine token for storage/comparison. Tokens are only
// ever configured and compared as hashes.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TokenVerifier checks presented bearer tokens against the configured hash
// set.
type TokenVerifier struct {
	hashes map[string]struct{}
}

func NewTokenVerifier(tokenHashes []string) *TokenVerifier {
	hashes := make(map[string]struct{}, len(tokenHashes))
	for _, h := range tokenHashes {
		hashes[strings.ToLower(h)] = struct{}{}
	}
	return &TokenVerifier{hashes: hashes}
}

func (v *TokenVerifier) Verify(token string) bool {
	_, ok := v.hashes[HashToken(token)]
	return ok
}

// Middleware enforces "Authorization: Bearer <token>" on the API routes.
func (v *TokenVerifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if !v.Verify(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
