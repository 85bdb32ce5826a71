package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/amsel-crm/memberportal/internal/backend"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/liff"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Context keys set by the LINE auth middleware.
const (
	ContextAccessToken = "lineAccessToken"
	ContextIDToken     = "lineIDToken"
	ContextLineProfile = "lineProfile"
	ContextIDClaims    = "lineIDClaims"
)

// LineIdentity verifies LINE tokens.
type LineIdentity interface {
	Configured() bool
	LIFFID() string
	VerifyAccessToken(ctx context.Context, accessToken string) (*liff.Profile, error)
	VerifyIDToken(ctx context.Context, idToken string) (*liff.IDTokenClaims, error)
}

// MemberBackend is the loyalty REST API.
type MemberBackend interface {
	Configured() bool
	GetProfile(ctx context.Context, accessToken, lineUserID string) (*backend.Member, error)
	UpdateProfile(ctx context.Context, accessToken, lineUserID string, update backend.ProfileUpdate) error
	Register(ctx context.Context, idToken string, reg backend.Registration) error
	Registered(ctx context.Context, idToken string) (bool, error)
	ListCoupons(ctx context.Context, accessToken string, page, limit int) (*backend.CouponPage, error)
}

// getLineUserID extracts the verified LINE user ID from gin context.
func getLineUserID(c *gin.Context) string {
	return c.GetString(apphttp.ContextLineUserID)
}

// getLineProfile extracts the verified LINE profile, if any.
func getLineProfile(c *gin.Context) *liff.Profile {
	val, exists := c.Get(ContextLineProfile)
	if !exists {
		return nil
	}
	profile, _ := val.(*liff.Profile)
	return profile
}

// respondBackendError maps backend client failures onto the error envelope.
func respondBackendError(c *gin.Context, err error, notFoundCode string) {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrNotConfigured):
		apphttp.RespondError(c, http.StatusServiceUnavailable, apphttp.CodeBackendUnavailable, "backend is not configured")
	case errors.Is(err, backend.ErrUnauthorized):
		apphttp.RespondError(c, http.StatusUnauthorized, apphttp.CodeOpenInLine, "LINE session expired, please reopen in LINE")
	case errors.Is(err, backend.ErrNotFound):
		apphttp.RespondError(c, http.StatusNotFound, notFoundCode, "member not found")
	case errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError:
		message := statusErr.Message
		if message == "" {
			message = "request rejected"
		}
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, message)
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		log.WithError(err).Warn("backend request failed")
		apphttp.RespondError(c, http.StatusBadGateway, apphttp.CodeBackendUnavailable, "backend unavailable")
	}
}
