package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// totpIssuer names the back office in authenticator apps.
const totpIssuer = "Amsel Member Admin"

// pendingSecretTTL bounds how long an unconfirmed TOTP secret stays valid.
const pendingSecretTTL = 10 * time.Minute

type secretEntry struct {
	secret  string
	expires time.Time
}

// secretStore keeps temporary TOTP secrets in memory.
type secretStore struct {
	mu    sync.Mutex
	items map[string]secretEntry
	now   func() time.Time
}

func newSecretStore() *secretStore {
	return &secretStore{items: make(map[string]secretEntry), now: time.Now}
}

// Set stores a secret with expiry.
func (s *secretStore) Set(key, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = secretEntry{secret: secret, expires: s.now().Add(pendingSecretTTL)}
}

// Get returns a secret if present and not expired.
func (s *secretStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return "", false
	}
	if s.now().After(entry.expires) {
		delete(s.items, key)
		return "", false
	}
	return entry.secret, true
}

// Delete removes a secret entry.
func (s *secretStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// MFAHandler handles TOTP enrollment for the signed-in admin.
type MFAHandler struct {
	db      *gorm.DB
	pending *secretStore
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db, pending: newSecretStore()}
}

// PrepareTOTP generates a new TOTP secret and QR code.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
		return
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Select("id", "username").First(&admin, adminID).Error; errFind != nil {
		apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "not found")
		return
	}

	enrollment, errEnroll := security.NewTOTPEnrollment(totpIssuer, admin.Username)
	if errEnroll != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "generate totp secret failed")
		return
	}
	h.pending.Set(strconv.FormatUint(admin.ID, 10), enrollment.Secret)
	c.JSON(http.StatusOK, enrollment)
}

// totpConfirmRequest defines the request body for confirming TOTP.
type totpConfirmRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP validates and enables TOTP for the admin.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
		return
	}
	var body totpConfirmRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "missing code")
		return
	}

	key := strconv.FormatUint(adminID, 10)
	secret, ok := h.pending.Get(key)
	if !ok {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "totp setup expired")
		return
	}
	if !security.ValidateTOTP(code, secret) {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "invalid code")
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", adminID).
		Updates(map[string]any{"totp_secret": secret, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "update failed")
		return
	}
	h.pending.Delete(key)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DisableTOTP removes the admin's TOTP secret.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeBadRequest, "admin not found")
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", adminID).
		Updates(map[string]any{"totp_secret": "", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "update failed")
		return
	}
	if res.RowsAffected == 0 {
		apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "not found")
		return
	}
	h.pending.Delete(strconv.FormatUint(adminID, 10))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
