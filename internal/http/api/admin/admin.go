// Package admin registers the back-office API.
package admin

import (
	"errors"
	"net/http"

	"github.com/amsel-crm/memberportal/internal/config"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/http/api/admin/handlers"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/amsel-crm/memberportal/internal/security"
	"github.com/amsel-crm/memberportal/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries what the admin routes need.
type Deps struct {
	DB       *gorm.DB
	JWT      config.JWTConfig
	Receipts *receipt.Service
}

// RegisterAdminRoutes mounts /v0/admin.
func RegisterAdminRoutes(r gin.IRouter, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT)
	mfaHandler := handlers.NewMFAHandler(deps.DB)
	adminHandler := handlers.NewAdminHandler(deps.DB)
	permissionHandler := handlers.NewPermissionHandler()
	dashboardHandler := handlers.NewDashboardHandler(deps.Receipts)
	receiptHandler := handlers.NewReceiptHandler(deps.Receipts)
	memberHandler := handlers.NewMemberHandler(deps.DB)
	settingHandler := handlers.NewSettingHandler(deps.DB)

	group := r.Group("/v0/admin")
	group.POST("/login", authHandler.Login)
	group.POST("/login/totp", authHandler.LoginTOTP)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(deps.DB, deps.JWT.Secret))
	authed.GET("/me", authHandler.Me)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	guarded := authed.Group("")
	guarded.Use(adminPermissionMiddleware(deps.DB))
	guarded.GET("/permissions", permissionHandler.List)
	guarded.GET("/admins", adminHandler.List)
	guarded.POST("/admins", adminHandler.Create)
	guarded.PUT("/admins/:id", adminHandler.Update)

	guarded.GET("/dashboard", dashboardHandler.Summary)

	guarded.GET("/receipts", receiptHandler.List)
	guarded.GET("/receipts/:id", receiptHandler.Get)
	guarded.GET("/receipts/:id/image", receiptHandler.Image)
	guarded.POST("/receipts/:id/approve", receiptHandler.Approve)
	guarded.POST("/receipts/:id/reject", receiptHandler.Reject)

	guarded.GET("/members", memberHandler.List)

	guarded.GET("/settings", settingHandler.List)
	guarded.PUT("/settings/:key", settingHandler.Update)
}

// adminAuthMiddleware validates the admin JWT and rejects disabled accounts.
func adminAuthMiddleware(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		token := util.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "missing token")
			return
		}
		claims, errParse := security.ParseAdminToken(secret, token)
		if errParse != nil {
			message := "invalid token"
			if errors.Is(errParse, security.ErrExpiredToken) {
				message = "token expired"
			}
			apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, message)
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).Select("id", "active").First(&admin, claims.AdminID).Error; errFind != nil {
			apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
			return
		}
		if !admin.Active {
			apphttp.AbortError(c, http.StatusForbidden, apphttp.CodeBadRequest, "admin account is disabled")
			return
		}
		c.Set(handlers.ContextAdminID, admin.ID)
		c.Next()
	}
}
