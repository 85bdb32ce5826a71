package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/amsel-crm/memberportal/internal/db"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/http/api/admin/permissions"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminHandler manages admin account endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// createAdminRequest defines the request body for admin creation.
type createAdminRequest struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	DisplayName  string   `json:"display_name"`
	Permissions  []string `json:"permissions"`
	IsSuperAdmin bool     `json:"is_super_admin"`
}

// permissionsJSON normalizes and validates keys, writing a 400 on unknown ones.
func permissionsJSON(c *gin.Context, keys []string) (datatypes.JSON, bool) {
	normalized := permissions.NormalizePermissions(keys)
	if errValidate := permissions.ValidatePermissions(normalized); errValidate != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, errValidate.Error())
		return nil, false
	}
	raw, errMarshal := permissions.MarshalPermissions(normalized)
	if errMarshal != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "marshal permissions failed")
		return nil, false
	}
	return datatypes.JSON(raw), true
}

// hashPassword hashes a new password, writing a 400 when it is too weak.
func hashPassword(c *gin.Context, password string) (string, bool) {
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		if errors.Is(errHash, security.ErrWeakPassword) {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, errHash.Error())
			return "", false
		}
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "hash password failed")
		return "", false
	}
	return hash, true
}

// Create creates a new admin account.
func (h *AdminHandler) Create(c *gin.Context) {
	var body createAdminRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "missing username")
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "missing password")
		return
	}
	hash, ok := hashPassword(c, password)
	if !ok {
		return
	}
	perms, ok := permissionsJSON(c, body.Permissions)
	if !ok {
		return
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("username = ?", username).Count(&existing).Error; errCount != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "query failed")
		return
	}
	if existing > 0 {
		apphttp.RespondError(c, http.StatusConflict, apphttp.CodeConflict, "username already exists")
		return
	}

	now := time.Now().UTC()
	admin := models.Admin{
		Username:     username,
		Password:     hash,
		DisplayName:  strings.TrimSpace(body.DisplayName),
		Active:       true,
		IsSuperAdmin: body.IsSuperAdmin,
		Permissions:  perms,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&admin).Error; errCreate != nil {
		log.WithError(errCreate).Error("admins: create failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "create admin failed")
		return
	}
	c.JSON(http.StatusCreated, adminView(admin))
}

// List returns all admin accounts, optionally filtered by ?username=.
func (h *AdminHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Admin{})
	if usernameQ := strings.TrimSpace(c.Query("username")); usernameQ != "" {
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "username"), dbutil.ContainsPattern(h.db, usernameQ))
	}

	var rows []models.Admin
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "list admins failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, adminView(row))
	}
	c.JSON(http.StatusOK, gin.H{"admins": out})
}

// updateAdminRequest defines the request body for admin updates.
type updateAdminRequest struct {
	DisplayName  *string   `json:"display_name"`
	Password     *string   `json:"password"`
	Active       *bool     `json:"active"`
	Permissions  *[]string `json:"permissions"`
	IsSuperAdmin *bool     `json:"is_super_admin"`
}

// Update modifies admin account fields. Admins cannot disable or demote themselves.
func (h *AdminHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body updateAdminRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}

	self, _ := readAdminIDFromContext(c)
	if self == id && ((body.Active != nil && !*body.Active) || (body.IsSuperAdmin != nil && !*body.IsSuperAdmin)) {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "cannot disable or demote yourself")
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*body.DisplayName)
	}
	if body.Password != nil {
		hash, okHash := hashPassword(c, strings.TrimSpace(*body.Password))
		if !okHash {
			return
		}
		updates["password"] = hash
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if body.Permissions != nil {
		perms, okPerms := permissionsJSON(c, *body.Permissions)
		if !okPerms {
			return
		}
		updates["permissions"] = perms
	}
	if body.IsSuperAdmin != nil {
		updates["is_super_admin"] = *body.IsSuperAdmin
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "update failed")
		return
	}
	if res.RowsAffected == 0 {
		apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
