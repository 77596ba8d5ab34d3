package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
)

const (
	AuthorizationHeader = "Authorization"

	// CallerKey stores the verified shared.Caller on the gin context
	CallerKey = "caller"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid caller token")
)

// callerClaims is the identity token minted by the upstream auth service:
// sub is the caller id and role one of ADMIN or BORROWER.
type callerClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ParseCallerToken verifies an HS256 token and extracts the caller.
func ParseCallerToken(tokenString string, secret []byte) (shared.Caller, error) {
	claims := &callerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return shared.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return shared.Caller{}, ErrInvalidToken
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return shared.Caller{}, fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}
	role, ok := shared.ParseRole(claims.Role)
	if !ok {
		return shared.Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return shared.Caller{ID: claims.Subject, Role: role}, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader(AuthorizationHeader)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// CallerIdentity authenticates the request and stores the caller on both the
// gin context and the request context. Requests without a valid token get 401.
func CallerIdentity(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			abortUnauthorized(c, "Authorization bearer token is required")
			return
		}

		caller, err := ParseCallerToken(tokenString, secret)
		if err != nil {
			abortUnauthorized(c, "Invalid caller token")
			return
		}

		c.Set(CallerKey, caller)
		c.Request = c.Request.WithContext(shared.ContextWithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireRole rejects callers without role with 403.
func RequireRole(role shared.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			abortUnauthorized(c, "Caller identity is missing")
			return
		}
		if caller.Role != role {
			response := gin.H{
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "This operation requires the " + string(role) + " role",
				},
			}
			if correlationID := GetCorrelationID(c); correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusForbidden, response)
			return
		}
		c.Next()
	}
}

// GetCaller returns the authenticated caller, if any.
func GetCaller(c *gin.Context) (shared.Caller, bool) {
	v, exists := c.Get(CallerKey)
	if !exists {
		return shared.Caller{}, false
	}
	caller, ok := v.(shared.Caller)
	return caller, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, response)
}
