package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	"github.com/amsel-crm/memberportal/internal/cache"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/members"
	"github.com/amsel-crm/memberportal/internal/settings"
	"github.com/amsel-crm/memberportal/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProfileHandler serves the member profile and everything derived from it.
type ProfileHandler struct {
	db      *gorm.DB
	backend MemberBackend
	cache   cache.Cache
	ttl     func() time.Duration
	now     func() time.Time
}

// NewProfileHandler constructs a ProfileHandler. A nil db skips CRM snapshots.
func NewProfileHandler(db *gorm.DB, backend MemberBackend, profiles cache.Cache, now func() time.Time) *ProfileHandler {
	if now == nil {
		now = time.Now
	}
	return &ProfileHandler{db: db, backend: backend, cache: profiles, ttl: settings.ProfileCacheTTL, now: now}
}

// loadMember returns the member profile, from cache unless force is set.
func (h *ProfileHandler) loadMember(c *gin.Context, force bool) (cache.Result[backend.Member], error) {
	lineUserID := getLineUserID(c)
	token := c.GetString(ContextAccessToken)
	ctx := c.Request.Context()

	res, errLoad := cache.Load(ctx, h.cache, cache.Policy{TTL: h.ttl()}, cache.ProfileKey(lineUserID), force,
		func(ctx context.Context) (backend.Member, error) {
			member, errGet := h.backend.GetProfile(ctx, token, lineUserID)
			if errGet != nil {
				return backend.Member{}, errGet
			}
			if member.LineUserID == "" {
				member.LineUserID = lineUserID
			}
			return *member, nil
		},
		func(errCache error) {
			log.WithError(errCache).WithField("token", util.HideToken(token)).Warn("profile cache unavailable")
		},
	)
	if errLoad != nil {
		return res, errLoad
	}
	if !res.Cached && h.db != nil {
		displayName := ""
		if profile := getLineProfile(c); profile != nil {
			displayName = profile.DisplayName
		}
		if errRecord := members.Record(ctx, h.db, displayName, &res.Value, h.now()); errRecord != nil {
			log.WithError(errRecord).Warn("profile: record member snapshot")
		}
	}
	return res, nil
}

// memberStanding classifies member, falling back to the entry tier when the backend sent a bad balance.
func memberStanding(member backend.Member) loyalty.Standing {
	standing, errStanding := member.Standing()
	if errStanding == nil {
		return standing
	}
	log.WithError(errStanding).WithFields(log.Fields{
		"line_user_id":       member.LineUserID,
		"accumulated_points": member.TierPoints(),
	}).Warn("profile: backend sent an invalid points balance")
	standing, _ = loyalty.Classify(0)
	return standing
}

func displayFallback(c *gin.Context) (name, picture string) {
	if profile := getLineProfile(c); profile != nil {
		return profile.DisplayName, profile.PictureURL
	}
	return "", ""
}

// Get returns the profile with the derived tier standing. ?refresh=1 bypasses the cache.
func (h *ProfileHandler) Get(c *gin.Context) {
	force := c.Query("refresh") == "1" || c.Query("refresh") == "true"
	res, errLoad := h.loadMember(c, force)
	if errLoad != nil {
		respondBackendError(c, errLoad, apphttp.CodeNotRegistered)
		return
	}
	member := res.Value
	standing := memberStanding(member)
	displayName, pictureURL := displayFallback(c)
	c.JSON(http.StatusOK, gin.H{
		"profile":      member,
		"full_name":    member.FullName(displayName),
		"display_name": displayName,
		"picture_url":  pictureURL,
		"standing":     standing,
		"fetched_at":   res.FetchedAt,
		"cached":       res.Cached,
	})
}

// Update validates and saves the editable profile fields, then drops the cached copy.
func (h *ProfileHandler) Update(c *gin.Context) {
	var form loyalty.ProfileForm
	if errBind := c.ShouldBindJSON(&form); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	form = form.Normalize()
	if errs := form.Validate(loyalty.ModeEdit, h.now()); errs != nil {
		apphttp.RespondValidation(c, errs)
		return
	}

	lineUserID := getLineUserID(c)
	ctx := c.Request.Context()
	if errUpdate := h.backend.UpdateProfile(ctx, c.GetString(ContextAccessToken), lineUserID, backend.ProfileUpdateFromForm(form)); errUpdate != nil {
		respondBackendError(c, errUpdate, apphttp.CodeNotRegistered)
		return
	}
	if errDelete := h.cache.Delete(ctx, cache.ProfileKey(lineUserID)); errDelete != nil {
		log.WithError(errDelete).Warn("profile: drop cached profile")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// MemberCard returns the tier carousel data.
func (h *ProfileHandler) MemberCard(c *gin.Context) {
	res, errLoad := h.loadMember(c, false)
	if errLoad != nil {
		respondBackendError(c, errLoad, apphttp.CodeNotRegistered)
		return
	}
	member := res.Value
	standing := memberStanding(member)
	cards, errCards := loyalty.Cards(member.RankingPoints())
	if errCards != nil {
		cards, _ = loyalty.Cards(0)
	}
	displayName, _ := displayFallback(c)
	c.JSON(http.StatusOK, gin.H{
		"full_name":          member.FullName(displayName),
		"points":             member.Points,
		"points_label":       loyalty.FormatNumber(member.Points),
		"accumulated_points": standing.AccumulatedUsed,
		"tier":               standing.Tier,
		"tier_name":          standing.Tier.DisplayName(),
		"standing":           standing,
		"cards":              cards,
	})
}

// Rewards returns the reward catalog annotated with what the member can afford.
func (h *ProfileHandler) Rewards(c *gin.Context) {
	res, errLoad := h.loadMember(c, false)
	if errLoad != nil {
		respondBackendError(c, errLoad, apphttp.CodeNotRegistered)
		return
	}
	points := res.Value.Points
	if points < 0 {
		points = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"points":  points,
		"rewards": loyalty.Offers(points),
	})
}
