// Package liff verifies LINE Front-end Framework credentials against the LINE platform.
package liff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAPIBase is the LINE platform API root.
const DefaultAPIBase = "https://api.line.me"

var (
	// ErrNotConfigured is returned when no channel is configured.
	ErrNotConfigured = errors.New("liff: channel not configured")
	// ErrInvalidToken is returned when LINE rejects a token or it belongs to another channel.
	ErrInvalidToken = errors.New("liff: invalid token")
)

// Profile is the LINE user profile.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// IDTokenClaims are the claims carried by a LINE ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Name    string   `json:"name,omitempty"`
	Picture string   `json:"picture,omitempty"`
	Email   string   `json:"email,omitempty"`
	AMR     []string `json:"amr,omitempty"`
	Nonce   string   `json:"nonce,omitempty"`
}

// Verifier checks access and ID tokens issued for one LINE login channel.
type Verifier struct {
	apiBase    string
	channelID  string
	liffID     string
	httpClient *http.Client
}

// ChannelIDFromLIFFID returns the channel prefix of a LIFF ID ("1657000000-AbCdEfGh").
func ChannelIDFromLIFFID(liffID string) string {
	channel, _, found := strings.Cut(strings.TrimSpace(liffID), "-")
	if !found {
		return ""
	}
	return channel
}

// NewVerifier creates a verifier. When channelID is empty it is derived from liffID.
func NewVerifier(apiBase, liffID, channelID string, timeout time.Duration) *Verifier {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		channelID = ChannelIDFromLIFFID(liffID)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Verifier{
		apiBase:    apiBase,
		channelID:  channelID,
		liffID:     strings.TrimSpace(liffID),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether tokens can be verified.
func (v *Verifier) Configured() bool {
	return v != nil && v.channelID != ""
}

// LIFFID returns the configured LIFF app ID.
func (v *Verifier) LIFFID() string {
	if v == nil {
		return ""
	}
	return v.liffID
}

type accessTokenInfo struct {
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// VerifyAccessToken checks that the token is live and was issued for this channel,
// then returns the owner's profile.
func (v *Verifier) VerifyAccessToken(ctx context.Context, accessToken string) (*Profile, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	var info accessTokenInfo
	verifyURL := v.apiBase + "/oauth2/v2.1/verify?" + url.Values{"access_token": {accessToken}}.Encode()
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if errReq != nil {
		return nil, fmt.Errorf("liff: build verify request: %w", errReq)
	}
	if err := v.doJSON(req, &info); err != nil {
		return nil, err
	}
	if info.ClientID != v.channelID || info.ExpiresIn <= 0 {
		return nil, ErrInvalidToken
	}

	profileReq, errReq := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBase+"/v2/profile", nil)
	if errReq != nil {
		return nil, fmt.Errorf("liff: build profile request: %w", errReq)
	}
	profileReq.Header.Set("Authorization", "Bearer "+accessToken)
	var profile Profile
	if err := v.doJSON(profileReq, &profile); err != nil {
		return nil, err
	}
	if profile.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &profile, nil
}

// VerifyIDToken asks LINE to validate the ID token for this channel and returns its claims.
func (v *Verifier) VerifyIDToken(ctx context.Context, idToken string) (*IDTokenClaims, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, ErrInvalidToken
	}
	form := url.Values{"id_token": {idToken}, "client_id": {v.channelID}}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, v.apiBase+"/oauth2/v2.1/verify", strings.NewReader(form.Encode()))
	if errReq != nil {
		return nil, fmt.Errorf("liff: build id token request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var claims IDTokenClaims
	if err := v.doJSON(req, &claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (v *Verifier) doJSON(req *http.Request, out any) error {
	resp, errDo := v.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("liff: %s %s: %w", req.Method, req.URL.Path, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	data, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return fmt.Errorf("liff: read %s: %w", req.URL.Path, errRead)
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("liff: %s returned status %d", req.URL.Path, resp.StatusCode)
	}
	if errDecode := json.Unmarshal(data, out); errDecode != nil {
		return fmt.Errorf("liff: decode %s: %w", req.URL.Path, errDecode)
	}
	return nil
}
