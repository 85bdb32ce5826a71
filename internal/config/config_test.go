package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var overrideVars = []string{
	"LISTEN_ADDR", "DATABASE_URL", "DATABASE_TIMEZONE", "JWT_SECRET", "JWT_EXPIRY",
	"LIFF_ID", "NEXT_PUBLIC_LIFF_ID", "LIFF_CHANNEL_ID", "LINE_CHANNEL_ID",
	"BACKEND_URL", "NEXT_PUBLIC_BACKEND_URL", "REDIS_URL",
	"R2_BUCKET_NAME", "S3_BUCKET", "R2_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID",
	"R2_ACCESS_KEY_SECRET", "AWS_SECRET_ACCESS_KEY", "CDN_BASE_URL", "S3_ENDPOINT",
	"CLOUDFLARE_ACCOUNT_ID", "LOG_LEVEL", "BODY_LIMIT_MB", "MEMBERPORTAL_CONFIG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range overrideVars {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write %s: %v", name, errWrite)
	}
	return path
}

func TestLoadAppliesDefaultsWithoutFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, errLoad := Load(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "missing.env"))
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Server.Listen)
	}
	if cfg.JWT.Expiry != 12*time.Hour {
		t.Fatalf("jwt expiry = %v", cfg.JWT.Expiry)
	}
	if cfg.Cache.Driver != "memory" || cfg.Storage.Driver != "local" {
		t.Fatalf("drivers = %q/%q", cfg.Cache.Driver, cfg.Storage.Driver)
	}
	if cfg.Database.TimeZone != "Asia/Bangkok" {
		t.Fatalf("timezone = %q", cfg.Database.TimeZone)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  listen: ":9090"
  allowed_origins: ["https://liff.line.me"]
database:
  dsn: "postgres://localhost/member"
jwt:
  secret: "0123456789abcdef0123"
  expiry: 2h
liff:
  liff_id: "2008123456-AbCdEf"
backend:
  base_url: "https://api.example.com/"
  timeout: 3s
storage:
  driver: S3
  bucket: receipts
`)

	cfg, errLoad := Load(path, filepath.Join(dir, "none.env"))
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if cfg.Server.Listen != ":9090" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.JWT.Expiry != 2*time.Hour {
		t.Fatalf("jwt expiry = %v", cfg.JWT.Expiry)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" || cfg.Backend.Timeout != 3*time.Second {
		t.Fatalf("backend = %+v", cfg.Backend)
	}
	if cfg.Storage.Driver != "s3" || cfg.Storage.Region != "auto" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("Validate: %v", errValidate)
	}
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "database:\n  dsn: \"from-yaml\"\n")
	t.Setenv("DATABASE_URL", "from-env")
	t.Setenv("NEXT_PUBLIC_LIFF_ID", "2008-xyz")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")
	t.Setenv("R2_BUCKET_NAME", "bucket")

	cfg, errLoad := Load(path, filepath.Join(dir, "none.env"))
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if cfg.Database.DSN != "from-env" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.LIFF.LIFFID != "2008-xyz" {
		t.Fatalf("liff id = %q", cfg.LIFF.LIFFID)
	}
	if cfg.Cache.Driver != "redis" {
		t.Fatalf("cache driver = %q", cfg.Cache.Driver)
	}
	if cfg.Storage.Driver != "s3" || cfg.Storage.Endpoint != "https://acct.r2.cloudflarestorage.com" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "BACKEND_URL=https://backend.test\n")
	// godotenv does not override variables that are already set, even when empty.
	if errUnset := os.Unsetenv("BACKEND_URL"); errUnset != nil {
		t.Fatalf("unset: %v", errUnset)
	}
	t.Cleanup(func() { _ = os.Unsetenv("BACKEND_URL") })

	cfg, errLoad := Load(filepath.Join(dir, "missing.yaml"), envPath)
	if errLoad != nil {
		t.Fatalf("Load: %v", errLoad)
	}
	if cfg.Backend.BaseURL != "https://backend.test" {
		t.Fatalf("backend url = %q", cfg.Backend.BaseURL)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "server: [unterminated\n")
	if _, errLoad := Load(path, filepath.Join(dir, "none.env")); errLoad == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	applyDefaults(cfg)
	cfg.JWT.Secret = "short"
	errValidate := cfg.Validate()
	if errValidate == nil {
		t.Fatalf("expected validation error")
	}
	msg := errValidate.Error()
	for _, want := range []string{"database.dsn", "jwt.secret"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %s", msg, want)
		}
	}

	cfg.Storage.Driver = "ftp"
	if errValidate = cfg.Validate(); !strings.Contains(errValidate.Error(), "ftp") {
		t.Fatalf("unsupported driver not reported: %v", errValidate)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("MEMBERPORTAL_CONFIG", "")
	if got := ResolveConfigPath(""); got != DefaultConfigPath {
		t.Fatalf("default = %q", got)
	}
	t.Setenv("MEMBERPORTAL_CONFIG", "/etc/member.yaml")
	if got := ResolveConfigPath(""); got != "/etc/member.yaml" {
		t.Fatalf("env = %q", got)
	}
	if got := ResolveConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Fatalf("flag = %q", got)
	}
}
