package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingHandler edits runtime settings.
type SettingHandler struct {
	db *gorm.DB
}

// NewSettingHandler constructs a SettingHandler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

// List returns the setting catalogue and the values in effect.
func (h *SettingHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"definitions": settings.Definitions,
		"values":      settings.Effective(),
		"updated_at":  settings.DBConfigUpdatedAt(),
	})
}

// updateSettingRequest defines the body for PUT /settings/:key.
type updateSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Update validates and stores one setting.
func (h *SettingHandler) Update(c *gin.Context) {
	key := c.Param("key")
	if _, ok := settings.Lookup(key); !ok {
		apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "unknown setting")
		return
	}
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body.Value) == 0 {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	adminID, _ := readAdminIDFromContext(c)

	value, errSave := settings.Save(c.Request.Context(), h.db, key, body.Value, adminID)
	if errSave != nil {
		if errors.Is(errSave, settings.ErrUnknownKey) {
			apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "unknown setting")
			return
		}
		if _, errValidate := settings.Validate(key, body.Value); errValidate != nil {
			apphttp.RespondValidation(c, map[string]string{"value": errValidate.Error()})
			return
		}
		log.WithError(errSave).WithField("key", key).Error("settings: save failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "save failed")
		return
	}
	log.WithFields(log.Fields{"key": key, "admin_id": adminID}).Info("setting updated")
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}
