package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/infra/config"
	"github.com/slamint/account-management/internal/usecase"
)

// errorBody mirrors the handlers' error payload so middleware rejections look
// the same as business errors to clients.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{
		Code:    code,
		Message: message,
		TraceID: GetTraceID(c),
	})
}

// keycloakClaims is the raw shape of an access token issued by the realm.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Email             string       `json:"email"`
	Name              string       `json:"name"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// TokenVerifier validates bearer tokens against the identity provider's JWKS
// endpoint and extracts the identity used for provisioning.
type TokenVerifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
	logger   *zap.Logger
}

// NewTokenVerifier builds a verifier with a background-refreshing JWKS cache.
// The verifier starts even when the provider is briefly unreachable; keys are
// fetched on first use.
func NewTokenVerifier(cfg config.AuthSettings, logger *zap.Logger) (*TokenVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("jwks refresh failed", zap.String("url", cfg.JWKSURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return &TokenVerifier{
		jwks:     k,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

// NewTokenVerifierWithKeyfunc builds a verifier around a prepared keyfunc.
// Used in tests to substitute a static key set.
func NewTokenVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer, audience string, logger *zap.Logger) *TokenVerifier {
	return &TokenVerifier{jwks: kf, issuer: issuer, audience: audience, logger: logger}
}

// RequireAuth validates the Authorization header and stores the verified
// identity in the request context.
func (v *TokenVerifier) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header.")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format: expected 'Bearer <token>'.")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing access token.")
			return
		}

		claims := &keycloakClaims{}
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithExpirationRequired(),
		}
		if v.issuer != "" {
			opts = append(opts, jwt.WithIssuer(v.issuer))
		}
		if v.audience != "" {
			opts = append(opts, jwt.WithAudience(v.audience))
		}

		token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(c.Request.Context()), opts...)
		if err != nil || !token.Valid {
			v.logger.Debug("token validation failed", zap.Error(err))
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token.")
			return
		}

		if claims.Subject == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token has no subject.")
			return
		}

		identity := usecase.Identity{Sub: claims.Subject}
		if claims.Email != "" {
			identity.Email = &claims.Email
		}
		if claims.Name != "" {
			identity.Name = &claims.Name
		}
		if claims.PreferredUsername != "" {
			identity.Username = &claims.PreferredUsername
		}
		if claims.RealmAccess != nil {
			identity.Roles = claims.RealmAccess.Roles
		}

		c.Set(IdentityKey, identity)

		c.Next()
	}
}

// GetIdentity retrieves the verified token identity from the context.
func GetIdentity(c *gin.Context) (usecase.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return usecase.Identity{}, false
	}
	identity, ok := value.(usecase.Identity)
	return identity, ok
}

// RequireRole allows only actors whose effective role is in the given set.
// Must run after the provisioning middleware.
func RequireRole(roles ...domain.RoleName) gin.HandlerFunc {
	allowed := make(map[domain.RoleName]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
			return
		}

		if _, ok := allowed[actor.Role]; !ok {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions.")
			return
		}

		c.Next()
	}
}
