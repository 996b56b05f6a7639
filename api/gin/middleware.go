package sssogin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/CoachCoe/polkadot-sso/client"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/log"
	"github.com/CoachCoe/polkadot-sso/services"
	"github.com/gin-gonic/gin"
)

var ErrInvalidAuthorizationHeader = errors.New("invalid bearer token")

const introspectionKey = "sso.introspection"

// extractJWTFromHeader extracts the JWT from the Authorization header.
func extractJWTFromHeader(bearerToken string) (string, error) {
	const prefix = "bearer "
	if len(bearerToken) > len(prefix) && strings.EqualFold(bearerToken[:len(prefix)], prefix) {
		if token := strings.TrimSpace(bearerToken[len(prefix):]); token != "" {
			return token, nil
		}
	}

	return "", ErrInvalidAuthorizationHeader
}

// RequireAccessToken verifies the bearer access token and stores its introspection
// in the gin context for IntrospectionFrom.
func RequireAccessToken(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractJWTFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, serrors.NewTokenInvalid(err))
			return
		}

		info, err := tokens.Introspect(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(introspectionKey, info)
		c.Next()
	}
}

// IntrospectionFrom returns what RequireAccessToken stored, if anything.
func IntrospectionFrom(c *gin.Context) (*services.Introspection, bool) {
	v, ok := c.Get(introspectionKey)
	if !ok {
		return nil, false
	}

	info, ok := v.(*services.Introspection)

	return info, ok
}

// RequestLogger logs one entry per request. Query strings are left out since they
// carry authorization codes.
func RequestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		if len(c.Errors) > 0 {
			logger.Error(c.Request.Context(), "HTTP request failed", c.Errors.Last().Err, fields)
			return
		}

		logger.Info(c.Request.Context(), "HTTP request", fields)
	}
}

// CORSMiddleware allows browser calls from origins registered by any active client.
func CORSMiddleware(store client.ClientStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		c.Header("Vary", "Origin")

		if originAllowed(c, store, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
			c.Header("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(c *gin.Context, store client.ClientStore, origin string) bool {
	clients, err := store.ListClients(c.Request.Context())
	if err != nil {
		return false
	}

	for _, cl := range clients {
		if cl.Active && cl.AllowsOrigin(origin) {
			return true
		}
	}

	return false
}
