package admin

import (
	"net/http"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/http/api/admin/handlers"
	"github.com/amsel-crm/memberportal/internal/http/api/admin/permissions"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set once the admin row has been loaded.
const (
	contextAdminPermissions  = "adminPermissions"
	contextAdminIsSuperAdmin = "adminIsSuperAdmin"
)

// adminPermissionMiddleware enforces permission checks for admin routes.
func adminPermissionMiddleware(db *gorm.DB) gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			apphttp.AbortError(c, http.StatusForbidden, apphttp.CodeBadRequest, "permission denied")
			return
		}

		key := permissions.Key(c.Request.Method, path)
		if _, ok := permissionMap[key]; !ok {
			apphttp.AbortError(c, http.StatusForbidden, apphttp.CodeBadRequest, "permission denied")
			return
		}

		adminPermissions, okPermissions := readAdminPermissionsFromContext(c)
		adminIsSuperAdmin, okSuper := readAdminIsSuperAdminFromContext(c)
		if !okPermissions || !okSuper {
			adminIDValue, exists := c.Get(handlers.ContextAdminID)
			if !exists {
				apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
				return
			}
			adminID, okID := adminIDValue.(uint64)
			if !okID {
				apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
				return
			}

			var admin models.Admin
			if errFind := db.WithContext(c.Request.Context()).Select("id", "permissions", "is_super_admin").First(&admin, adminID).Error; errFind != nil {
				apphttp.AbortError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
				return
			}
			adminPermissions = permissions.ParsePermissions(admin.Permissions)
			adminIsSuperAdmin = admin.IsSuperAdmin
			c.Set(contextAdminPermissions, adminPermissions)
			c.Set(contextAdminIsSuperAdmin, adminIsSuperAdmin)
		}

		if adminIsSuperAdmin {
			c.Next()
			return
		}

		if !permissions.HasPermission(adminPermissions, key) {
			apphttp.AbortError(c, http.StatusForbidden, apphttp.CodeBadRequest, "permission denied")
			return
		}

		c.Next()
	}
}

// readAdminPermissionsFromContext extracts permissions from the gin context.
func readAdminPermissionsFromContext(c *gin.Context) ([]string, bool) {
	value, ok := c.Get(contextAdminPermissions)
	if !ok {
		return nil, false
	}
	permissionsList, ok := value.([]string)
	return permissionsList, ok
}

// readAdminIsSuperAdminFromContext extracts the super admin flag from context.
func readAdminIsSuperAdminFromContext(c *gin.Context) (bool, bool) {
	value, ok := c.Get(contextAdminIsSuperAdmin)
	if !ok {
		return false, false
	}
	flag, ok := value.(bool)
	return flag, ok
}
