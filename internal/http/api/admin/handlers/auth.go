package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/config"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler handles admin authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for admin login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// findLoginAdmin loads an active admin by username and checks the password.
func (h *AuthHandler) findLoginAdmin(c *gin.Context, body loginRequest) (*models.Admin, bool) {
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "username and password are required")
		return nil, false
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Error("admin login: query failed")
		}
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "invalid credentials")
		return nil, false
	}
	if !security.CheckPassword(admin.Password, password) {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "invalid credentials")
		return nil, false
	}
	if !admin.Active {
		apphttp.RespondError(c, http.StatusForbidden, apphttp.CodeBadRequest, "admin account is disabled")
		return nil, false
	}
	return &admin, true
}

// Login authenticates an admin and issues a JWT if MFA is not required.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	admin, ok := h.findLoginAdmin(c, body)
	if !ok {
		return
	}
	if strings.TrimSpace(admin.TOTPSecret) != "" {
		c.JSON(http.StatusOK, gin.H{"mfa_required": true, "username": admin.Username})
		return
	}
	h.respondWithAdminToken(c, *admin)
}

// LoginTOTP completes a login for admins with TOTP enabled.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "missing code")
		return
	}
	admin, ok := h.findLoginAdmin(c, body)
	if !ok {
		return
	}
	if strings.TrimSpace(admin.TOTPSecret) == "" {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "totp not enabled")
		return
	}
	if !security.ValidateTOTP(body.Code, admin.TOTPSecret) {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "invalid code")
		return
	}
	h.respondWithAdminToken(c, *admin)
}

// Me returns the signed-in admin.
func (h *AuthHandler) Me(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
		return
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
		return
	}
	c.JSON(http.StatusOK, adminView(admin))
}

// respondWithAdminToken generates a JWT and responds with admin info.
func (h *AuthHandler) respondWithAdminToken(c *gin.Context, admin models.Admin) {
	token, errToken := security.GenerateAdminToken(h.jwtCfg.Secret, admin.ID, admin.Username, h.jwtCfg.Expiry)
	if errToken != nil {
		log.WithError(errToken).Error("admin login: sign token")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "failed to generate token")
		return
	}

	now := time.Now().UTC()
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		UpdateColumn("last_login_at", now).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("admin_id", admin.ID).Warn("admin login: record last login")
	}
	admin.LastLoginAt = &now

	log.WithFields(log.Fields{"admin_id": admin.ID, "username": admin.Username}).Info("admin signed in")
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.jwtCfg.Expiry.Seconds()),
		"admin":      adminView(admin),
	})
}
