package front

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/cache"
	"github.com/amsel-crm/memberportal/internal/geo"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/http/api/front/handlers"
	"github.com/amsel-crm/memberportal/internal/liff"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/amsel-crm/memberportal/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the components the member API is built from.
type Deps struct {
	DB       *gorm.DB
	Identity handlers.LineIdentity
	Backend  handlers.MemberBackend
	Cache    cache.Cache
	Receipts *receipt.Service
	Stores   []geo.Store
	Now      func() time.Time
}

// RegisterFrontRoutes registers public and LINE-authenticated member routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Identity == nil || deps.Backend == nil || deps.Cache == nil {
		return
	}

	front := r.Group("/v0/front")

	configHandler := handlers.NewConfigHandler(deps.Identity, deps.Backend)
	front.GET("/config", configHandler.Get)
	front.GET("/shops", handlers.Shops)

	storeHandler := handlers.NewStoreHandler(deps.Stores)
	front.GET("/stores/nearest", storeHandler.Nearest)

	registration := front.Group("")
	registration.Use(lineIDTokenMiddleware(deps.Identity))
	registrationHandler := handlers.NewRegistrationHandler(deps.Backend, deps.Cache, deps.Now)
	registration.GET("/registration", registrationHandler.Status)
	registration.POST("/register", registrationHandler.Register)

	authed := front.Group("")
	authed.Use(lineAuthMiddleware(deps.Identity))

	profileHandler := handlers.NewProfileHandler(deps.DB, deps.Backend, deps.Cache, deps.Now)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.GET("/member-card", profileHandler.MemberCard)
	authed.GET("/rewards", profileHandler.Rewards)

	couponHandler := handlers.NewCouponHandler(deps.Backend, deps.Now)
	authed.GET("/coupons", couponHandler.List)

	if deps.Receipts != nil {
		receiptHandler := handlers.NewReceiptHandler(deps.Receipts, deps.Cache)
		authed.POST("/receipts", receiptHandler.Create)
		authed.GET("/receipts", receiptHandler.List)
	}
}

// bearerToken reads the Authorization header, aborting with open_in_line when it is missing.
func bearerToken(c *gin.Context) (string, bool) {
	token := util.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeOpenInLine, "please open in LINE")
		return "", false
	}
	return token, true
}

// abortIdentityError maps LINE verification failures onto the error envelope.
func abortIdentityError(c *gin.Context, token string, err error) {
	switch {
	case errors.Is(err, liff.ErrNotConfigured):
		apphttp.AbortError(c, http.StatusServiceUnavailable, apphttp.CodeOpenInLine, "LINE login is not configured")
	case errors.Is(err, liff.ErrInvalidToken):
		apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeOpenInLine, "LINE session expired, please reopen in LINE")
	default:
		log.WithError(err).WithField("token", util.HideToken(token)).Warn("LINE verification failed")
		apphttp.AbortError(c, http.StatusBadGateway, apphttp.CodeOpenInLine, "cannot reach LINE")
	}
}

// lineAuthMiddleware verifies the LINE access token and loads the LINE profile into context.
func lineAuthMiddleware(identity handlers.LineIdentity) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		profile, errVerify := identity.VerifyAccessToken(c.Request.Context(), token)
		if errVerify != nil {
			abortIdentityError(c, token, errVerify)
			return
		}
		if claimed := strings.TrimSpace(c.GetHeader("X-Line-UserId")); claimed != "" && claimed != profile.UserID {
			apphttp.AbortError(c, http.StatusForbidden, apphttp.CodeOpenInLine, "LINE user mismatch")
			return
		}
		c.Set(apphttp.ContextLineUserID, profile.UserID)
		c.Set(handlers.ContextAccessToken, token)
		c.Set(handlers.ContextLineProfile, profile)
		c.Next()
	}
}

// lineIDTokenMiddleware verifies a LINE ID token for the registration routes.
func lineIDTokenMiddleware(identity handlers.LineIdentity) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		claims, errVerify := identity.VerifyIDToken(c.Request.Context(), token)
		if errVerify != nil {
			abortIdentityError(c, token, errVerify)
			return
		}
		c.Set(apphttp.ContextLineUserID, claims.Subject)
		c.Set(handlers.ContextIDToken, token)
		c.Set(handlers.ContextIDClaims, claims)
		c.Next()
	}
}
