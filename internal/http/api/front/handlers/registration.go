package handlers

import (
	"net/http"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	"github.com/amsel-crm/memberportal/internal/cache"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/liff"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RegistrationHandler handles first-time member sign-up.
type RegistrationHandler struct {
	backend MemberBackend
	cache   cache.Cache
	now     func() time.Time
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(backend MemberBackend, profiles cache.Cache, now func() time.Time) *RegistrationHandler {
	if now == nil {
		now = time.Now
	}
	return &RegistrationHandler{backend: backend, cache: profiles, now: now}
}

func getIDClaims(c *gin.Context) (*liff.IDTokenClaims, string) {
	val, _ := c.Get(ContextIDClaims)
	claims, _ := val.(*liff.IDTokenClaims)
	return claims, c.GetString(ContextIDToken)
}

// Status reports whether the LINE user already has a member account, with prefill data.
func (h *RegistrationHandler) Status(c *gin.Context) {
	claims, idToken := getIDClaims(c)
	if claims == nil {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeOpenInLine, "please open in LINE")
		return
	}

	registered, errRegistered := h.backend.Registered(c.Request.Context(), idToken)
	if errRegistered != nil {
		respondBackendError(c, errRegistered, apphttp.CodeNotRegistered)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registered":   registered,
		"line_user_id": claims.Subject,
		"prefill": gin.H{
			"email":        claims.Email,
			"display_name": claims.Name,
			"picture_url":  claims.Picture,
		},
		"titles": loyalty.Titles,
	})
}

// Register validates the form and creates the member in the backend.
func (h *RegistrationHandler) Register(c *gin.Context) {
	claims, idToken := getIDClaims(c)
	if claims == nil {
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeOpenInLine, "please open in LINE")
		return
	}

	var form loyalty.ProfileForm
	if errBind := c.ShouldBindJSON(&form); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	form = form.Normalize()
	if errs := form.Validate(loyalty.ModeRegister, h.now()); errs != nil {
		apphttp.RespondValidation(c, errs)
		return
	}
	reg, errReg := backend.RegistrationFromForm(form)
	if errReg != nil {
		apphttp.RespondValidation(c, map[string]string{"birthDate": "รูปแบบวันเกิดไม่ถูกต้อง"})
		return
	}

	if errRegister := h.backend.Register(c.Request.Context(), idToken, reg); errRegister != nil {
		respondBackendError(c, errRegister, apphttp.CodeNotFound)
		return
	}
	if h.cache != nil && claims.Subject != "" {
		if errDelete := h.cache.Delete(c.Request.Context(), cache.ProfileKey(claims.Subject)); errDelete != nil {
			log.WithError(errDelete).Warn("register: drop cached profile")
		}
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}
