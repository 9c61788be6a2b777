package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/slamint/account-management/internal/infra/logger"
	"github.com/slamint/account-management/internal/usecase"
)

// Provision runs the idempotent ensure-user routine for every authenticated
// request and stores the resulting local row as the acting user. Must run
// after RequireAuth.
func Provision(provisioning *usecase.ProvisioningService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
			return
		}

		actor, _, err := provisioning.EnsureFromIdentity(c.Request.Context(), identity)
		if err != nil {
			email := ""
			if identity.Email != nil {
				email = appLogger.MaskEmail(*identity.Email)
			}
			logger.Error("failed to provision authenticated user",
				zap.String("sub", identity.Sub),
				zap.String("email", email),
				zap.Error(err),
			)
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR",
				"An unexpected error occurred on the server. Please try again later.")
			return
		}

		c.Set(ActorKey, *actor)

		c.Next()
	}
}
