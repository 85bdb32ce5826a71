package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	"github.com/amsel-crm/memberportal/internal/cache"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var receiptStatusLabels = map[models.ReceiptStatus]string{
	models.ReceiptPending:  "รอตรวจสอบ",
	models.ReceiptApproved: "อนุมัติแล้ว",
	models.ReceiptRejected: "ไม่อนุมัติ",
}

// receiptView is what a member sees of their own receipt.
type receiptView struct {
	ID            string               `json:"id"`
	Shop          string               `json:"shop"`
	ReceiptNo     string               `json:"receipt_no"`
	TotalAmount   float64              `json:"total_amount"`
	AmountLabel   string               `json:"amount_label"`
	Status        models.ReceiptStatus `json:"status"`
	StatusLabel   string               `json:"status_label"`
	PointsAwarded int64                `json:"points_awarded"`
	RejectReason  string               `json:"reject_reason,omitempty"`
	SubmittedAt   time.Time            `json:"submitted_at"`
	ReviewedAt    *time.Time           `json:"reviewed_at,omitempty"`
}

func newReceiptView(rec models.Receipt) receiptView {
	return receiptView{
		ID:            rec.PublicID,
		Shop:          rec.Shop,
		ReceiptNo:     rec.ReceiptNo,
		TotalAmount:   rec.TotalAmount,
		AmountLabel:   loyalty.FormatDecimal(rec.TotalAmount) + " บาท",
		Status:        rec.Status,
		StatusLabel:   receiptStatusLabels[rec.Status],
		PointsAwarded: rec.PointsAwarded,
		RejectReason:  rec.RejectReason,
		SubmittedAt:   rec.CreatedAt,
		ReviewedAt:    rec.ReviewedAt,
	}
}

// ReceiptHandler accepts receipt uploads from members.
type ReceiptHandler struct {
	receipts *receipt.Service
	cache    cache.Cache
}

// NewReceiptHandler constructs a ReceiptHandler.
func NewReceiptHandler(receipts *receipt.Service, profiles cache.Cache) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, cache: profiles}
}

// memberName prefers the cached profile name over the LINE display name.
func (h *ReceiptHandler) memberName(c *gin.Context) string {
	displayName, _ := displayFallback(c)
	if h.cache == nil {
		return displayName
	}
	entry, errGet := h.cache.Get(c.Request.Context(), cache.ProfileKey(getLineUserID(c)))
	if errGet != nil {
		return displayName
	}
	var member backend.Member
	if errDecode := json.Unmarshal(entry.Value, &member); errDecode != nil {
		return displayName
	}
	return member.FullName(displayName)
}

// Create stores an uploaded receipt as pending review.
func (h *ReceiptHandler) Create(c *gin.Context) {
	sub := receipt.Submission{
		LineUserID:  getLineUserID(c),
		MemberName:  h.memberName(c),
		Shop:        c.PostForm("shop"),
		CustomShop:  c.PostForm("custom_shop"),
		ReceiptNo:   c.PostForm("receipt_no"),
		TotalAmount: c.PostForm("total_amount"),
		Metadata: map[string]any{
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		},
	}

	fileHeader, errFile := c.FormFile("image")
	switch {
	case errFile == nil:
		file, errOpen := fileHeader.Open()
		if errOpen != nil {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "cannot read image")
			return
		}
		defer func() { _ = file.Close() }()
		sub.Image = file
		sub.ContentType = fileHeader.Header.Get("Content-Type")
	case errors.Is(errFile, http.ErrMissingFile):
	default:
		var maxErr *http.MaxBytesError
		if errors.As(errFile, &maxErr) {
			apphttp.RespondError(c, http.StatusRequestEntityTooLarge, apphttp.CodeBadRequest, "upload too large")
			return
		}
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "invalid multipart form")
		return
	}

	rec, errSubmit := h.receipts.Submit(c.Request.Context(), sub)
	if errSubmit != nil {
		var verrs loyalty.ValidationErrors
		if errors.As(errSubmit, &verrs) {
			apphttp.RespondValidation(c, verrs)
			return
		}
		if errors.Is(errSubmit, io.ErrUnexpectedEOF) {
			apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeBadRequest, "upload interrupted")
			return
		}
		log.WithError(errSubmit).Error("receipt: submit failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "could not save receipt")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"receipt":   newReceiptView(*rec),
		"duplicate": rec.Duplicate,
	})
}

// List returns the member's own receipts, newest first.
func (h *ReceiptHandler) List(c *gin.Context) {
	rows, errList := h.receipts.ListForMember(c.Request.Context(), getLineUserID(c), queryInt(c, "limit", 50, 1, 100))
	if errList != nil {
		log.WithError(errList).Error("receipt: list failed")
		apphttp.RespondError(c, http.StatusInternalServerError, apphttp.CodeInternal, "could not load receipts")
		return
	}
	out := make([]receiptView, 0, len(rows))
	for _, row := range rows {
		out = append(out, newReceiptView(row))
	}
	c.JSON(http.StatusOK, gin.H{"receipts": out})
}
