package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/amsel-crm/memberportal/internal/storage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ReceiptHandler runs the receipt approvals queue.
type ReceiptHandler struct {
	receipts *receipt.Service
}

// NewReceiptHandler constructs a ReceiptHandler.
func NewReceiptHandler(receipts *receipt.Service) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

func receiptView(rec models.Receipt) gin.H {
	return gin.H{
		"id":                 rec.ID,
		"public_id":          rec.PublicID,
		"line_user_id":       rec.LineUserID,
		"member_name":        rec.MemberName,
		"shop":               rec.Shop,
		"receipt_no":         rec.ReceiptNo,
		"total_amount":       rec.TotalAmount,
		"status":             rec.Status,
		"duplicate":          rec.Duplicate,
		"duplicate_of_id":    rec.DuplicateOfID,
		"points_awarded":     rec.PointsAwarded,
		"reject_reason":      rec.RejectReason,
		"reviewed_by":        rec.ReviewedBy,
		"reviewed_at":        rec.ReviewedAt,
		"image_content_type": rec.ImageContentType,
		"image_size":         rec.ImageSize,
		"image_path":         "/v0/admin/receipts/" + strconv.FormatUint(rec.ID, 10) + "/image",
		"created_at":         rec.CreatedAt,
	}
}

// respondReviewError maps approval workflow errors to responses.
func respondReviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, receipt.ErrNotFound):
		apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "receipt not found")
	case errors.Is(err, receipt.ErrDuplicate):
		apphttp.RespondError(c, http.StatusConflict, apphttp.CodeDuplicateReceipt, "receipt is flagged as duplicate; approve with force to override")
	case errors.Is(err, receipt.ErrNotPending):
		apphttp.RespondError(c, http.StatusConflict, apphttp.CodeConflict, "receipt was already reviewed")
	case errors.Is(err, receipt.ErrReasonRequired):
		apphttp.RespondValidation(c, map[string]string{"reason": "กรุณาระบุเหตุผล"})
	default:
		log.WithError(err).Error("receipts: review failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "review failed")
	}
}

// List returns one page of the queue. Filters: status, q, duplicate, page, page_size.
func (h *ReceiptHandler) List(c *gin.Context) {
	filter := receipt.Filter{Query: strings.TrimSpace(c.Query("q"))}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" && raw != "all" {
		status := models.ReceiptStatus(raw)
		if !status.Valid() {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid status")
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(c.Query("duplicate")); raw != "" {
		flag, errParse := strconv.ParseBool(raw)
		if errParse != nil {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid duplicate filter")
			return
		}
		filter.Duplicate = &flag
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	page, errList := h.receipts.List(c.Request.Context(), filter)
	if errList != nil {
		log.WithError(errList).Error("receipts: list failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "list receipts failed")
		return
	}
	out := make([]gin.H, 0, len(page.Items))
	for _, rec := range page.Items {
		out = append(out, receiptView(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"receipts":  out,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// Get returns one receipt with its metadata.
func (h *ReceiptHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, errGet := h.receipts.Get(c.Request.Context(), id)
	if errGet != nil {
		respondReviewError(c, errGet)
		return
	}
	view := receiptView(*rec)
	view["metadata"] = rec.Metadata
	if url, errURL := h.receipts.Images().URL(c.Request.Context(), rec.ImageKey); errURL == nil && url != "" {
		view["image_url"] = url
	}
	c.JSON(http.StatusOK, view)
}

// Image redirects to the stored image, or streams it when the store has no public URL.
func (h *ReceiptHandler) Image(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rec, errGet := h.receipts.Get(ctx, id)
	if errGet != nil {
		respondReviewError(c, errGet)
		return
	}

	images := h.receipts.Images()
	url, errURL := images.URL(ctx, rec.ImageKey)
	if errURL == nil && url != "" {
		c.Redirect(http.StatusFound, url)
		return
	}

	body, errOpen := images.Open(ctx, rec.ImageKey)
	if errOpen != nil {
		if errors.Is(errOpen, storage.ErrNotFound) {
			apphttp.RespondError(c, http.StatusNotFound, apphttp.CodeNotFound, "image not found")
			return
		}
		log.WithError(errOpen).WithField("receipt", rec.PublicID).Error("receipts: open image")
		apphttp.RespondError(c, http.StatusBadGateway, apphttp.CodeInternal, "image unavailable")
		return
	}
	defer func() { _ = body.Close() }()

	contentType := rec.ImageContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, rec.ImageSize, contentType, body, nil)
}

// approveRequest defines the optional body for approvals.
type approveRequest struct {
	Force bool `json:"force"`
}

// Approve credits points for a pending receipt.
func (h *ReceiptHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body approveRequest
	if c.Request.ContentLength != 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
			return
		}
	}
	adminID, _ := readAdminIDFromContext(c)

	rec, award, errApprove := h.receipts.Approve(c.Request.Context(), id, adminID, body.Force)
	if errApprove != nil {
		respondReviewError(c, errApprove)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receipt": receiptView(*rec),
		"award": gin.H{
			"points":         award.Points,
			"amount":         award.Amount,
			"baht_per_point": award.BahtPerPoint,
			"created_at":     award.CreatedAt.Format(time.RFC3339),
		},
	})
}

// rejectRequest defines the body for rejections.
type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject closes a pending receipt with a reason shown to the member.
func (h *ReceiptHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body rejectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid json")
		return
	}
	adminID, _ := readAdminIDFromContext(c)

	rec, errReject := h.receipts.Reject(c.Request.Context(), id, adminID, body.Reason)
	if errReject != nil {
		respondReviewError(c, errReject)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": receiptView(*rec)})
}
