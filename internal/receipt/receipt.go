// Package receipt handles member receipt uploads and their review by admins.
package receipt

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/settings"
	"github.com/amsel-crm/memberportal/internal/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a receipt does not exist.
	ErrNotFound = errors.New("receipt: not found")
	// ErrNotPending is returned when reviewing a receipt that was already reviewed.
	ErrNotPending = errors.New("receipt: not pending")
	// ErrDuplicate is returned when approving a flagged duplicate without force.
	ErrDuplicate = errors.New("receipt: duplicate requires force")
	// ErrReasonRequired is returned when rejecting without a reason.
	ErrReasonRequired = errors.New("receipt: reject reason required")
)

// maxReceiptNoLen bounds the typed receipt number.
const maxReceiptNoLen = 64

// Service stores receipts and runs the approval workflow.
type Service struct {
	db     *gorm.DB
	images storage.ImageStore
	now    func() time.Time

	// bahtPerPoint and maxImageBytes default to the runtime settings.
	bahtPerPoint  func() int64
	maxImageBytes func() int64
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBahtPerPoint fixes the earning rate instead of reading settings.
func WithBahtPerPoint(rate func() int64) Option {
	return func(s *Service) { s.bahtPerPoint = rate }
}

// WithMaxImageBytes fixes the upload cap instead of reading settings.
func WithMaxImageBytes(limit func() int64) Option {
	return func(s *Service) { s.maxImageBytes = limit }
}

// NewService builds a Service over db and images.
func NewService(db *gorm.DB, images storage.ImageStore, opts ...Option) *Service {
	s := &Service{
		db:            db,
		images:        images,
		now:           time.Now,
		bahtPerPoint:  settings.BahtPerPoint,
		maxImageBytes: settings.ReceiptMaxImageBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Images exposes the image store for proxying.
func (s *Service) Images() storage.ImageStore { return s.images }

// Submission is one upload from the member form.
type Submission struct {
	LineUserID  string
	MemberName  string
	Shop        string
	CustomShop  string
	ReceiptNo   string
	TotalAmount string
	Image       io.Reader
	ContentType string // As declared by the client; sniffed content wins.
	Metadata    map[string]any
}

// PointsFor returns floor(amount / bahtPerPoint), or 0 for a non-positive rate.
func PointsFor(amount float64, bahtPerPoint int64) int64 {
	if bahtPerPoint <= 0 || amount <= 0 {
		return 0
	}
	return int64(math.Floor(amount/float64(bahtPerPoint) + 1e-9))
}

// NormalizeReceiptNo reduces a receipt number to upper-case letters and digits.
func NormalizeReceiptNo(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeShop folds case and whitespace of a shop name.
func NormalizeShop(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// Submit validates the upload, stores the image and records a pending receipt.
// Collisions with earlier receipts are flagged, not refused.
func (s *Service) Submit(ctx context.Context, sub Submission) (*models.Receipt, error) {
	errs := loyalty.ValidationErrors{}

	shop, okShop := loyalty.ResolveShop(sub.Shop, sub.CustomShop)
	if !okShop {
		errs["shop"] = "กรุณาเลือกร้านค้าที่รองรับ"
	}
	receiptNo := strings.TrimSpace(sub.ReceiptNo)
	receiptNoKey := NormalizeReceiptNo(receiptNo)
	switch {
	case receiptNoKey == "":
		errs["receipt_no"] = "กรุณากรอกเลขที่ใบเสร็จ"
	case len([]rune(receiptNo)) > maxReceiptNoLen:
		errs["receipt_no"] = "เลขที่ใบเสร็จยาวเกินไป"
	}
	amount, errAmount := loyalty.ParseDecimal(sub.TotalAmount)
	if errAmount != nil || amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		errs["total_amount"] = "ยอดซื้อต้องมากกว่า 0"
	}

	var (
		data        []byte
		contentType string
	)
	if sub.Image == nil {
		errs["image"] = "กรุณาแนบรูปใบเสร็จ"
	} else {
		limit := s.maxImageBytes()
		var errRead error
		data, errRead = io.ReadAll(io.LimitReader(sub.Image, limit+1))
		switch {
		case errRead != nil:
			return nil, fmt.Errorf("receipt: read image: %w", errRead)
		case len(data) == 0:
			errs["image"] = "กรุณาแนบรูปใบเสร็จ"
		case int64(len(data)) > limit:
			errs["image"] = fmt.Sprintf("รูปต้องมีขนาดไม่เกิน %d MB", limit>>20)
		default:
			var okType bool
			contentType, okType = detectImageType(data, sub.ContentType)
			if !okType {
				errs["image"] = "รองรับเฉพาะไฟล์ JPG, PNG, WEBP หรือ HEIC"
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	shopKey := NormalizeShop(shop)
	now := s.now()

	key := storage.ReceiptKey(shop, now, storage.ImageTypes[contentType])
	if errPut := s.images.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); errPut != nil {
		return nil, fmt.Errorf("receipt: store image: %w", errPut)
	}

	var metadata datatypes.JSON
	if len(sub.Metadata) > 0 {
		raw, errMarshal := json.Marshal(sub.Metadata)
		if errMarshal != nil {
			return nil, fmt.Errorf("receipt: encode metadata: %w", errMarshal)
		}
		metadata = datatypes.JSON(raw)
	}

	rec := &models.Receipt{
		PublicID:         uuid.NewString(),
		LineUserID:       sub.LineUserID,
		MemberName:       strings.TrimSpace(sub.MemberName),
		Shop:             shop,
		ReceiptNo:        receiptNo,
		ReceiptNoKey:     receiptNoKey,
		ShopKey:          shopKey,
		TotalAmount:      math.Round(amount*100) / 100,
		ImageKey:         key,
		ImageSHA256:      hash,
		ImageContentType: contentType,
		ImageSize:        int64(len(data)),
		Status:           models.ReceiptPending,
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior models.Receipt
		errFind := tx.Model(&models.Receipt{}).
			Where("status <> ?", models.ReceiptRejected).
			Where("(receipt_no_key = ? AND shop_key = ?) OR image_sha256 = ?", receiptNoKey, shopKey, hash).
			Order("id ASC").
			Take(&prior).Error
		switch {
		case errFind == nil:
			rec.Duplicate = true
			rec.DuplicateOfID = &prior.ID
		case !errors.Is(errFind, gorm.ErrRecordNotFound):
			return errFind
		}
		return tx.Create(rec).Error
	})
	if errTx != nil {
		if errDelete := s.images.Delete(ctx, key); errDelete != nil {
			log.WithError(errDelete).WithField("key", key).Warn("receipt: remove orphaned image")
		}
		return nil, fmt.Errorf("receipt: create: %w", errTx)
	}

	log.WithFields(log.Fields{
		"receipt":   rec.PublicID,
		"shop":      rec.Shop,
		"amount":    rec.TotalAmount,
		"duplicate": rec.Duplicate,
	}).Info("receipt submitted")
	return rec, nil
}

// detectImageType sniffs data and falls back to the declared type for formats
// the sniffer does not know, such as HEIC.
func detectImageType(data []byte, declared string) (string, bool) {
	sniffed := http.DetectContentType(data)
	if _, ok := storage.ImageTypes[sniffed]; ok {
		return sniffed, true
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "image/heif" {
		declared = "image/heic"
	}
	if declared == "image/heic" && looksLikeHEIC(data) {
		return declared, true
	}
	return "", false
}

// looksLikeHEIC checks the ISO BMFF "ftyp" box for a HEIF brand.
func looksLikeHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
		return true
	}
	return false
}

// Get loads a receipt by primary key.
func (s *Service) Get(ctx context.Context, id uint64) (*models.Receipt, error) {
	var rec models.Receipt
	if errFind := s.db.WithContext(ctx).Take(&rec, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("receipt: get %d: %w", id, errFind)
	}
	return &rec, nil
}

// ListForMember returns a member's receipts, newest first.
func (s *Service) ListForMember(ctx context.Context, lineUserID string, limit int) ([]models.Receipt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []models.Receipt
	if errFind := s.db.WithContext(ctx).
		Where("line_user_id = ?", lineUserID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; errFind != nil {
		return nil, fmt.Errorf("receipt: list for member: %w", errFind)
	}
	return out, nil
}
