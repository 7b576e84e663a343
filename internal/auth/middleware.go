package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Authenticator checks bearer access tokens against the signer and the
// revocation list.
type Authenticator struct {
	tokens  *Tokens
	revoked Revocations
}

func NewAuthenticator(tokens *Tokens, revoked Revocations) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked}
}

// Require enforces a valid bearer access token.
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, present := c.Request.Header["Authorization"]; !present {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		a.authenticate(c)
	}
}

// Optional lets requests without an Authorization header through
// anonymously, but a header that is present must carry a valid token.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, present := c.Request.Header["Authorization"]; !present {
			c.Next()
			return
		}
		a.authenticate(c)
	}
}

func (a *Authenticator) authenticate(c *gin.Context) {
	authz := c.GetHeader("Authorization")
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	tokenStr := strings.TrimSpace(authz[len("bearer "):])
	claims, err := a.tokens.Parse(tokenStr, KindAccess)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	revoked, err := a.revoked.Revoked(c.Request.Context(), claims.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not verify token"})
		return
	}
	if revoked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

// ClaimsFrom returns the claims stored by Require or Optional.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
