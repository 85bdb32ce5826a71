package handlers

import (
	"net/http"
	"strconv"
	"strings"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/members"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MemberHandler lists members seen by the portal.
type MemberHandler struct {
	db *gorm.DB
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(db *gorm.DB) *MemberHandler {
	return &MemberHandler{db: db}
}

// List returns member snapshots. Filters: q, tier, page, page_size.
func (h *MemberHandler) List(c *gin.Context) {
	filter := members.Filter{Query: strings.TrimSpace(c.Query("q"))}
	if raw := strings.TrimSpace(c.Query("tier")); raw != "" {
		tier, ok := loyalty.ParseTier(raw)
		if !ok {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid tier")
			return
		}
		filter.Tier = tier
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	page, errList := members.List(c.Request.Context(), h.db, filter)
	if errList != nil {
		log.WithError(errList).Error("members: list failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "list members failed")
		return
	}
	out := make([]gin.H, 0, len(page.Items))
	for _, row := range page.Items {
		out = append(out, gin.H{
			"line_user_id":       row.LineUserID,
			"display_name":       row.DisplayName,
			"full_name":          row.FullName,
			"email":              row.Email,
			"phone":              row.Phone,
			"tier":               row.Tier,
			"points":             row.Points,
			"accumulated_points": row.AccumulatedPoints,
			"last_seen_at":       row.LastSeenAt,
			"created_at":         row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"members":   out,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}
