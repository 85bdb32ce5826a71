package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/pquerna/otp/totp"
)

// TOTPEnrollment is a freshly generated, not yet confirmed TOTP secret.
type TOTPEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRImage    string `json:"qr_image"` // PNG data URI, empty when rendering failed.
}

// NewTOTPEnrollment generates a secret for account under issuer.
func NewTOTPEnrollment(issuer, account string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: account})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	out := &TOTPEnrollment{Secret: key.Secret(), OTPAuthURL: key.URL()}
	if img, errImage := key.Image(220, 220); errImage == nil {
		var buf bytes.Buffer
		if errEncode := png.Encode(&buf, img); errEncode == nil {
			out.QRImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	return out, nil
}

// ValidateTOTP checks a six-digit code against secret.
func ValidateTOTP(code, secret string) bool {
	code = strings.TrimSpace(code)
	secret = strings.TrimSpace(secret)
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
