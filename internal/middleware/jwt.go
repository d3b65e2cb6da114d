package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleGuest = "guest"
	RoleAdmin = "admin"

	claimsKey = "claims"
)

type Claims struct {
	Role    string `json:"role"`
	GuestID string `json:"guest_id,omitempty"`
	jwt.RegisteredClaims
}

// Guest returns the guest the token was issued to, if any.
func (c *Claims) Guest() (uuid.UUID, bool) {
	if c == nil || c.GuestID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.GuestID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CanAccessGuest reports whether the bearer may touch data owned by guestID.
func (c *Claims) CanAccessGuest(guestID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin {
		return true
	}
	id, ok := c.Guest()
	return ok && c.Role == RoleGuest && id == guestID
}

type Auth struct {
	secret []byte
	ttl    time.Duration
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Auth{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues an HS256 token. Guest tokens must carry a guest id.
func (a *Auth) GenerateToken(role string, guestID uuid.UUID) (string, error) {
	switch role {
	case RoleAdmin:
	case RoleGuest:
		if guestID == uuid.Nil {
			return "", errors.New("guest token requires a guest id")
		}
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	if guestID != uuid.Nil {
		claims.GuestID = guestID.String()
		claims.Subject = guestID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAuth ensures a valid JWT is present
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := a.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// Store claims in context for downstream handlers
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role not found in token"})
			return
		}
		if claims.Role != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// SetClaims stores claims on the context, for handlers that authenticate
// outside the header, such as websocket upgrades with a token query parameter.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(claimsKey, claims)
}
