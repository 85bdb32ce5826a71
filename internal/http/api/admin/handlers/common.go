package handlers

import (
	"net/http"
	"strconv"
	"strings"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/http/api/admin/permissions"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/gin-gonic/gin"
)

// ContextAdminID is the gin context key holding the authenticated admin ID.
const ContextAdminID = "adminID"

// readAdminIDFromContext returns the admin ID from request context.
func readAdminIDFromContext(c *gin.Context) (uint64, bool) {
	value, ok := c.Get(ContextAdminID)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint64)
	return id, ok
}

// parseID reads the :id route parameter, writing a 400 when it is malformed.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func adminView(admin models.Admin) gin.H {
	return gin.H{
		"id":             admin.ID,
		"username":       admin.Username,
		"display_name":   admin.DisplayName,
		"active":         admin.Active,
		"is_super_admin": admin.IsSuperAdmin,
		"permissions":    permissions.ParsePermissions(admin.Permissions),
		"totp_enabled":   strings.TrimSpace(admin.TOTPSecret) != "",
		"last_login_at":  admin.LastLoginAt,
		"created_at":     admin.CreatedAt,
		"updated_at":     admin.UpdatedAt,
	}
}
