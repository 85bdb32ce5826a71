package front

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	"github.com/amsel-crm/memberportal/internal/cache"
	"github.com/amsel-crm/memberportal/internal/db"
	"github.com/amsel-crm/memberportal/internal/liff"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/amsel-crm/memberportal/internal/receipt"
	"github.com/amsel-crm/memberportal/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

const (
	memberToken = "access-token-member"
	idToken     = "id-token-member"
	memberID    = "U1234567890"
)

type fakeIdentity struct{}

func (fakeIdentity) Configured() bool { return true }
func (fakeIdentity) LIFFID() string   { return "2008123456-AbCdEf" }

func (fakeIdentity) VerifyAccessToken(_ context.Context, token string) (*liff.Profile, error) {
	if token != memberToken {
		return nil, liff.ErrInvalidToken
	}
	return &liff.Profile{UserID: memberID, DisplayName: "Jane LINE", PictureURL: "https://example.com/p.png"}, nil
}

func (fakeIdentity) VerifyIDToken(_ context.Context, token string) (*liff.IDTokenClaims, error) {
	if token != idToken {
		return nil, liff.ErrInvalidToken
	}
	return &liff.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: memberID},
		Name:             "Jane LINE",
		Email:            "jane@example.com",
	}, nil
}

type fakeBackend struct {
	mu           sync.Mutex
	member       *backend.Member
	profileErr   error
	profileCalls int
	updates      []backend.ProfileUpdate
	registered   bool
	registration *backend.Registration
	coupons      []backend.Coupon
}

func (b *fakeBackend) Configured() bool { return true }

func (b *fakeBackend) GetProfile(_ context.Context, token, lineUserID string) (*backend.Member, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileCalls++
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	if token != memberToken || lineUserID != memberID {
		return nil, backend.ErrUnauthorized
	}
	copied := *b.member
	return &copied, nil
}

func (b *fakeBackend) UpdateProfile(_ context.Context, _, _ string, update backend.ProfileUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, update)
	return nil
}

func (b *fakeBackend) Register(_ context.Context, _ string, reg backend.Registration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registration = &reg
	return nil
}

func (b *fakeBackend) Registered(context.Context, string) (bool, error) {
	return b.registered, nil
}

func (b *fakeBackend) ListCoupons(_ context.Context, _ string, page, limit int) (*backend.CouponPage, error) {
	return &backend.CouponPage{Coupons: b.coupons, Total: len(b.coupons), Page: page, Limit: limit, TotalPages: 1}, nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profileCalls
}

type testServer struct {
	router  *gin.Engine
	backend *fakeBackend
	db      *gorm.DB
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "front.db")), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	images, errLocal := storage.NewLocal(t.TempDir())
	if errLocal != nil {
		t.Fatalf("local store: %v", errLocal)
	}

	accumulated := int64(3800)
	email := "jane@example.com"
	fake := &fakeBackend{member: &backend.Member{
		LineUserID:        memberID,
		Title:             "นางสาว",
		FirstName:         "Jane",
		LastName:          "Doe",
		Email:             &email,
		Points:            450,
		AccumulatedPoints: &accumulated,
	}}

	now := time.Date(2025, 11, 27, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := gin.New()
	RegisterFrontRoutes(r, Deps{
		DB:       conn,
		Identity: fakeIdentity{},
		Backend:  fake,
		Cache:    cache.NewMemory(nil),
		Receipts: receipt.NewService(conn, images,
			receipt.WithClock(clock),
			receipt.WithBahtPerPoint(func() int64 { return 10 }),
			receipt.WithMaxImageBytes(func() int64 { return 1 << 20 }),
		),
		Now: clock,
	})
	return &testServer{router: r, backend: fake, db: conn, now: now}
}

func (s *testServer) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if errDecode := json.Unmarshal(rec.Body.Bytes(), out); errDecode != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), errDecode)
	}
}

func TestAuthMiddlewareRequiresLineToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v0/front/profile", "", nil, "")
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "open_in_line") {
		t.Fatalf("missing token: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/v0/front/profile", "stale-token", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/front/profile", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	req.Header.Set("X-Line-UserId", "Usomeoneelse")
	mismatch := httptest.NewRecorder()
	s.router.ServeHTTP(mismatch, req)
	if mismatch.Code != http.StatusForbidden {
		t.Fatalf("mismatched user status = %d", mismatch.Code)
	}
}

func TestProfileIsCachedAndRecorded(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v0/front/profile", memberToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		FullName string           `json:"full_name"`
		Standing loyalty.Standing `json:"standing"`
		Cached   bool             `json:"cached"`
	}
	decode(t, rec, &body)
	if body.FullName != "นางสาว Jane Doe" || body.Standing.Tier != loyalty.TierGold || body.Cached {
		t.Fatalf("body = %+v", body)
	}
	if body.Standing.PointsToNext != 1200 {
		t.Fatalf("points to next = %d", body.Standing.PointsToNext)
	}

	rec = s.do(t, http.MethodGet, "/v0/front/profile", memberToken, nil, "")
	decode(t, rec, &body)
	if !body.Cached || s.backend.calls() != 1 {
		t.Fatalf("second read cached=%v calls=%d", body.Cached, s.backend.calls())
	}

	_ = s.do(t, http.MethodGet, "/v0/front/profile?refresh=1", memberToken, nil, "")
	if s.backend.calls() != 2 {
		t.Fatalf("refresh calls = %d, want 2", s.backend.calls())
	}

	var snap models.MemberSnapshot
	if errFind := s.db.First(&snap, "line_user_id = ?", memberID).Error; errFind != nil {
		t.Fatalf("snapshot: %v", errFind)
	}
	if snap.Tier != "GOLD" || snap.DisplayName != "Jane LINE" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestProfileNotRegistered(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.backend.profileErr = backend.ErrNotFound
	rec := s.do(t, http.MethodGet, "/v0/front/profile", memberToken, nil, "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not_registered") {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateProfileValidatesAndInvalidatesCache(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	_ = s.do(t, http.MethodGet, "/v0/front/profile", memberToken, nil, "")

	bad := []byte(`{"firstName":"Jane","lastName":"Doe","email":"nope","phoneNumber":"12345","birthDate":"2030-01-01"}`)
	rec := s.do(t, http.MethodPut, "/v0/front/profile", memberToken, bad, "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid update status = %d", rec.Code)
	}
	var verr struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &verr)
	for _, field := range []string{"title", "email", "phoneNumber", "birthDate"} {
		if verr.Fields[field] == "" {
			t.Fatalf("missing %s error: %v", field, verr.Fields)
		}
	}

	good := []byte(`{"title":"นางสาว","firstName":"Jane","lastName":"Doe","email":"jane@example.com","phoneNumber":"081-234-5678","birthDate":"1990-05-01"}`)
	rec = s.do(t, http.MethodPut, "/v0/front/profile", memberToken, good, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body %s", rec.Code, rec.Body.String())
	}
	if len(s.backend.updates) != 1 || s.backend.updates[0].Phone != "0812345678" {
		t.Fatalf("updates = %+v", s.backend.updates)
	}

	_ = s.do(t, http.MethodGet, "/v0/front/profile", memberToken, nil, "")
	if s.backend.calls() != 2 {
		t.Fatalf("profile not refetched after update, calls = %d", s.backend.calls())
	}
}

func TestMemberCardAndRewards(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v0/front/member-card", memberToken, nil, "")
	var card struct {
		Tier  loyalty.Tier       `json:"tier"`
		Cards []loyalty.TierCard `json:"cards"`
	}
	decode(t, rec, &card)
	if card.Tier != loyalty.TierGold || len(card.Cards) != 3 {
		t.Fatalf("card = %+v", card)
	}

	rec = s.do(t, http.MethodGet, "/v0/front/rewards", memberToken, nil, "")
	var rewards struct {
		Points  int64                 `json:"points"`
		Rewards []loyalty.RewardOffer `json:"rewards"`
	}
	decode(t, rec, &rewards)
	if rewards.Points != 450 || len(rewards.Rewards) != len(loyalty.RewardCatalog) {
		t.Fatalf("rewards = %+v", rewards)
	}
}

func TestMemberCardKeepsReportedPointsForTierOnlyMember(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.backend.member.AccumulatedPoints = nil
	s.backend.member.Points = 100
	s.backend.member.Tier = loyalty.TierGold

	rec := s.do(t, http.MethodGet, "/v0/front/member-card", memberToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var card struct {
		Tier              loyalty.Tier       `json:"tier"`
		AccumulatedPoints int64              `json:"accumulated_points"`
		Standing          loyalty.Standing   `json:"standing"`
		Cards             []loyalty.TierCard `json:"cards"`
	}
	decode(t, rec, &card)
	if card.Tier != loyalty.TierGold || card.AccumulatedPoints != 100 || card.Standing.AccumulatedUsed != 100 {
		t.Fatalf("card = %+v", card)
	}
	if card.Cards[1].State != loyalty.CardCurrent {
		t.Fatalf("gold card = %+v", card.Cards[1])
	}

	var snap models.MemberSnapshot
	if errFind := s.db.First(&snap, "line_user_id = ?", memberID).Error; errFind != nil {
		t.Fatalf("snapshot: %v", errFind)
	}
	if snap.Tier != string(loyalty.TierGold) || snap.AccumulatedPoints != card.AccumulatedPoints {
		t.Fatalf("snapshot = %+v, card = %+v", snap, card)
	}
}

func TestProfileWarnsOnNegativeBalance(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	s := newTestServer(t)
	negative := int64(-50)
	s.backend.member.AccumulatedPoints = &negative

	rec := s.do(t, http.MethodGet, "/v0/front/profile", memberToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Standing loyalty.Standing `json:"standing"`
	}
	decode(t, rec, &body)
	if body.Standing.Tier != loyalty.TierSilver {
		t.Fatalf("standing = %+v", body.Standing)
	}

	found := false
	for _, entry := range hook.AllEntries() {
		errLogged, _ := entry.Data[log.ErrorKey].(error)
		if entry.Level == log.WarnLevel && errors.Is(errLogged, loyalty.ErrNegativePoints) {
			found = true
		}
	}
	if !found {
		t.Fatalf("negative balance was not logged")
	}
}

func TestCouponsKeepUsableOnly(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	soon := s.now.Add(48 * time.Hour)
	later := s.now.Add(30 * 24 * time.Hour)
	expired := s.now.Add(-time.Hour)
	s.backend.coupons = []backend.Coupon{
		{ID: "1", Code: "SAVE20", Type: loyalty.CouponPercentage, Discount: "20", ValidUntil: &soon, IsActive: true},
		{ID: "2", Code: "SHIP", Type: loyalty.CouponFreeShipping, Discount: "0", MinPurchaseAmount: 500, ValidUntil: &later, IsActive: true},
		{ID: "3", Code: "OLD", Type: loyalty.CouponFixedAmount, Discount: "100", ValidUntil: &expired, IsActive: true},
		{ID: "4", Code: "OFF", Type: loyalty.CouponFixedAmount, Discount: "100", IsActive: false},
	}

	rec := s.do(t, http.MethodGet, "/v0/front/coupons?page=1&limit=10", memberToken, nil, "")
	var body struct {
		Coupons []struct {
			Code           string `json:"code"`
			DiscountLabel  string `json:"discount_label"`
			ConditionLabel string `json:"condition_label"`
			ExpiresSoon    bool   `json:"expires_soon"`
		} `json:"coupons"`
	}
	decode(t, rec, &body)
	if len(body.Coupons) != 2 {
		t.Fatalf("coupons = %+v", body.Coupons)
	}
	if body.Coupons[0].DiscountLabel != "ลด 20%" || !body.Coupons[0].ExpiresSoon {
		t.Fatalf("first coupon = %+v", body.Coupons[0])
	}
	if body.Coupons[1].DiscountLabel != "ฟรีค่าส่ง" || body.Coupons[1].ConditionLabel != "เมื่อซื้อครบ 500 บาท" || body.Coupons[1].ExpiresSoon {
		t.Fatalf("second coupon = %+v", body.Coupons[1])
	}
}

func TestNearestStores(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v0/front/stores/nearest", "", nil, "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "location_required") {
		t.Fatalf("missing location: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/v0/front/stores/nearest?lat=13.7563&lng=100.5018&limit=2", "", nil, "")
	var body struct {
		Stores []struct {
			DistanceKm float64 `json:"distance_km"`
		} `json:"stores"`
	}
	decode(t, rec, &body)
	if len(body.Stores) != 2 || body.Stores[0].DistanceKm > body.Stores[1].DistanceKm {
		t.Fatalf("stores = %+v", body.Stores)
	}
}

func multipartReceipt(t *testing.T, receiptNo string, image []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("shop", "ร้าน Watson")
	_ = w.WriteField("receipt_no", receiptNo)
	_ = w.WriteField("total_amount", "350")
	if image != nil {
		part, errPart := w.CreateFormFile("image", "receipt.png")
		if errPart != nil {
			t.Fatalf("create form file: %v", errPart)
		}
		_, _ = part.Write(image)
	}
	if errClose := w.Close(); errClose != nil {
		t.Fatalf("close multipart: %v", errClose)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func TestReceiptUploadAndList(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	image := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRreceipt")

	body, contentType := multipartReceipt(t, "W-001", image)
	rec := s.do(t, http.MethodPost, "/v0/front/receipts", memberToken, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body %s", rec.Code, rec.Body.String())
	}

	body, contentType = multipartReceipt(t, "W-001", image)
	rec = s.do(t, http.MethodPost, "/v0/front/receipts", memberToken, body, contentType)
	var dup struct {
		Duplicate bool `json:"duplicate"`
	}
	decode(t, rec, &dup)
	if rec.Code != http.StatusCreated || !dup.Duplicate {
		t.Fatalf("duplicate upload: %d %s", rec.Code, rec.Body.String())
	}

	body, contentType = multipartReceipt(t, "W-002", nil)
	rec = s.do(t, http.MethodPost, "/v0/front/receipts", memberToken, body, contentType)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), `"image"`) {
		t.Fatalf("missing image: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/v0/front/receipts", memberToken, nil, "")
	var list struct {
		Receipts []struct {
			Status      string `json:"status"`
			StatusLabel string `json:"status_label"`
		} `json:"receipts"`
	}
	decode(t, rec, &list)
	if len(list.Receipts) != 2 || list.Receipts[0].Status != "pending" || list.Receipts[0].StatusLabel == "" {
		t.Fatalf("receipts = %+v", list.Receipts)
	}
}

func TestRegistrationFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v0/front/registration", idToken, nil, "")
	var status struct {
		Registered bool `json:"registered"`
		Prefill    struct {
			Email string `json:"email"`
		} `json:"prefill"`
	}
	decode(t, rec, &status)
	if rec.Code != http.StatusOK || status.Registered || status.Prefill.Email != "jane@example.com" {
		t.Fatalf("status = %d %+v", rec.Code, status)
	}

	rec = s.do(t, http.MethodPost, "/v0/front/register", idToken, []byte(`{"firstName":"","lastName":"Doe"}`), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid register status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/v0/front/register", idToken, []byte(`{"firstName":"Jane","lastName":"Doe","birthDate":"1990-05-01"}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body %s", rec.Code, rec.Body.String())
	}
	if s.backend.registration == nil || s.backend.registration.Email != nil || s.backend.registration.BirthDate == nil {
		t.Fatalf("registration = %+v", s.backend.registration)
	}

	rec = s.do(t, http.MethodGet, "/v0/front/registration", memberToken, nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("access token accepted as ID token: %d", rec.Code)
	}
}

func TestPublicConfigAndShops(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v0/front/config", "", nil, "")
	var cfg struct {
		LIFFID         string `json:"liff_id"`
		LIFFConfigured bool   `json:"liff_configured"`
	}
	decode(t, rec, &cfg)
	if cfg.LIFFID != "2008123456-AbCdEf" || !cfg.LIFFConfigured {
		t.Fatalf("config = %+v", cfg)
	}

	rec = s.do(t, http.MethodGet, "/v0/front/shops", "", nil, "")
	var shops struct {
		Shops []string `json:"shops"`
	}
	decode(t, rec, &shops)
	if len(shops.Shops) != len(loyalty.Shops) {
		t.Fatalf("shops = %v", shops.Shops)
	}
}
