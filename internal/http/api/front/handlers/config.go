package handlers

import (
	"net/http"

	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/settings"
	"github.com/gin-gonic/gin"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SiteName          string `json:"site_name"`
	LIFFID            string `json:"liff_id"`
	LIFFConfigured    bool   `json:"liff_configured"`
	BackendConfigured bool   `json:"backend_configured"`
}

// ConfigHandler serves configuration the LIFF pages need before login.
type ConfigHandler struct {
	identity LineIdentity
	backend  MemberBackend
}

// NewConfigHandler constructs a ConfigHandler.
func NewConfigHandler(identity LineIdentity, backend MemberBackend) *ConfigHandler {
	return &ConfigHandler{identity: identity, backend: backend}
}

// Get returns public configuration for the member UI.
func (h *ConfigHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, publicConfigResponse{
		SiteName:          settings.SiteName(),
		LIFFID:            h.identity.LIFFID(),
		LIFFConfigured:    h.identity.Configured(),
		BackendConfigured: h.backend.Configured(),
	})
}

// Shops lists the stores receipts can be submitted for.
func Shops(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"shops": loyalty.Shops, "other": loyalty.OtherShop})
}
