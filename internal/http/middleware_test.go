package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if body["code"] != CodeInternal {
		t.Fatalf("body = %v", body)
	}
}

func TestCORSAllowsListedOrigins(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CORS([]string{"https://liff.line.me/"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://liff.line.me")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://liff.line.me" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin: status %d, header %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(BodyLimit(4))
	r.POST("/echo", func(c *gin.Context) {
		if _, errRead := io.ReadAll(c.Request.Body); errRead != nil {
			RespondError(c, http.StatusRequestEntityTooLarge, CodeBadRequest, "too large")
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123456789")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRespondValidation(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/v", func(c *gin.Context) { RespondValidation(c, map[string]string{"email": "bad"}) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v?access_token=secretvalue", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if body.Code != CodeValidationFailed || body.Fields["email"] != "bad" {
		t.Fatalf("body = %+v", body)
	}
}
