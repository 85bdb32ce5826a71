package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, errToken := GenerateAdminToken("secret", 42, "root", time.Hour)
	if errToken != nil {
		t.Fatalf("GenerateAdminToken: %v", errToken)
	}
	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("ParseAdminToken: %v", errParse)
	}
	if claims.AdminID != 42 || claims.Username != "root" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseAdminTokenRejects(t *testing.T) {
	t.Parallel()

	expired, _ := GenerateAdminToken("secret", 1, "root", -time.Minute)
	if _, errParse := ParseAdminToken("secret", expired); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expired token error = %v", errParse)
	}

	valid, _ := GenerateAdminToken("secret", 1, "root", time.Hour)
	if _, errParse := ParseAdminToken("other", valid); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("wrong secret error = %v", errParse)
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		AdminID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, _ := foreign.SignedString([]byte("secret"))
	if _, errParse := ParseAdminToken("secret", signed); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("foreign issuer error = %v", errParse)
	}

	if _, errToken := GenerateAdminToken("", 1, "root", time.Hour); errToken == nil {
		t.Fatalf("empty secret should fail")
	}
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, errHash := HashPassword("correct horse")
	if errHash != nil {
		t.Fatalf("HashPassword: %v", errHash)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatalf("CheckPassword should accept the original password")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Fatalf("CheckPassword should reject a different password")
	}
	if _, errHash = HashPassword("short"); !errors.Is(errHash, ErrWeakPassword) {
		t.Fatalf("short password error = %v", errHash)
	}
}

func TestGenerateRandomString(t *testing.T) {
	t.Parallel()

	for _, length := range []int{1, 7, 16, 33} {
		got, errGen := GenerateRandomString(length)
		if errGen != nil {
			t.Fatalf("GenerateRandomString(%d): %v", length, errGen)
		}
		if len(got) != length {
			t.Fatalf("len = %d, want %d", len(got), length)
		}
	}
}

func TestTOTPEnrollment(t *testing.T) {
	t.Parallel()

	enrollment, errEnroll := NewTOTPEnrollment("Amsel Member", "root")
	if errEnroll != nil {
		t.Fatalf("NewTOTPEnrollment: %v", errEnroll)
	}
	if !strings.HasPrefix(enrollment.OTPAuthURL, "otpauth://totp/") {
		t.Fatalf("otpauth url = %q", enrollment.OTPAuthURL)
	}
	if !strings.HasPrefix(enrollment.QRImage, "data:image/png;base64,") {
		t.Fatalf("qr image missing")
	}

	code, errCode := totp.GenerateCode(enrollment.Secret, time.Now())
	if errCode != nil {
		t.Fatalf("GenerateCode: %v", errCode)
	}
	if !ValidateTOTP(code, enrollment.Secret) {
		t.Fatalf("ValidateTOTP should accept the current code")
	}
	if ValidateTOTP("", enrollment.Secret) {
		t.Fatalf("ValidateTOTP should reject an empty code")
	}
}
