// Package backend talks to the loyalty REST API that owns members, points and coupons.
// Responses are normalized into one canonical schema here and nowhere else.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNotConfigured is returned when no backend base URL is set.
	ErrNotConfigured = errors.New("backend: base url not configured")
	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("backend: not found")
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Message)
}

// Is maps auth and not-found statuses onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Client is a thin JSON client. Calls are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL. An empty baseURL yields a client whose calls fail with ErrNotConfigured.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient is New with a caller-supplied http.Client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// GetProfile fetches the member behind accessToken. lineUserID is sent as X-Line-UserId when set.
func (c *Client) GetProfile(ctx context.Context, accessToken, lineUserID string) (*Member, error) {
	var raw rawMember
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, accessToken, lineUserID, nil, &raw); err != nil {
		return nil, err
	}
	member := raw.normalize()
	if member.LineUserID == "" {
		member.LineUserID = lineUserID
	}
	return &member, nil
}

// UpdateProfile saves the editable profile subset.
func (c *Client) UpdateProfile(ctx context.Context, accessToken, lineUserID string, update ProfileUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/users/profile", nil, accessToken, lineUserID, update, nil)
}

// Register creates the member identified by the LINE ID token.
func (c *Client) Register(ctx context.Context, idToken string, reg Registration) error {
	return c.do(ctx, http.MethodPost, "/api/users/register", nil, idToken, "", reg, nil)
}

// Registered reports whether the member behind idToken already exists.
func (c *Client) Registered(ctx context.Context, idToken string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/api/users/me", nil, idToken, "", nil, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ListCoupons fetches one page of the member's coupons.
func (c *Client) ListCoupons(ctx context.Context, accessToken string, page, limit int) (*CouponPage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var raw rawCouponPage
	if err := c.do(ctx, http.MethodGet, "/api/coupons", query, accessToken, "", nil, &raw); err != nil {
		return nil, err
	}
	out := raw.normalize()
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer, lineUserID string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, errMarshal)
		}
		reader = bytes.NewReader(payload)
	}

	req, errReq := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if errReq != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, errReq)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if lineUserID != "" {
		req.Header.Set("X-Line-UserId", lineUserID)
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Debug("backend: close response body")
		}
	}()

	data, errRead := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if errRead != nil {
		return fmt.Errorf("backend: read %s %s: %w", method, path, errRead)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		log.WithFields(log.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("backend request failed")
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if errDecode := json.Unmarshal(data, out); errDecode != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, errDecode)
	}
	return nil
}

// errorMessage extracts {"message"} or {"error"} from an error body, falling back to the raw text.
func errorMessage(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := string(trimmed)
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}
