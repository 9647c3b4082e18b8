package keypool

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/services"
)

// Credential tracks one rating provider API key and its daily health.
type Credential struct {
	ID               string    `json:"id"`
	Secret           string    `json:"-"`
	DailyUsage       int       `json:"daily_usage"`
	DailyQuota       int       `json:"daily_quota"`
	Active           bool      `json:"active"`
	QuotaExceeded    bool      `json:"quota_exceeded"`
	DeactivatedUntil time.Time `json:"deactivated_until,omitzero"`
	LastUsedAt       time.Time `json:"last_used_at,omitzero"`
	AuthFailures     int       `json:"auth_failures"`
	Failures         int       `json:"failures"`
}

// Masked returns the secret in a form safe for logs and diagnostics.
func (c Credential) Masked() string {
	return Mask(c.Secret)
}

// Remaining reports how many requests the credential may still make today.
func (c Credential) Remaining() int {
	if c.DailyUsage >= c.DailyQuota {
		return 0
	}
	return c.DailyQuota - c.DailyUsage
}

// ErrNoCredentials indicates discovery produced no usable credential.
var ErrNoCredentials = fmt.Errorf("%w: no valid rating credentials configured", services.ErrConfiguration)

var (
	placeholderExact = map[string]struct{}{
		"your_api_key":      {},
		"your-api-key":      {},
		"yourapikey":        {},
		"api_key":           {},
		"apikey":            {},
		"changeme":          {},
		"change_me":         {},
		"replace_me":        {},
		"replaceme":         {},
		"placeholder":       {},
		"undefined":         {},
		"null":              {},
		"none":              {},
		"todo":              {},
		"your_omdb_api_key": {},
	}
	repeatedX  = regexp.MustCompile(`^[xX*]+$`)
	wellFormed = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

const minSecretLength = 6

// Discover builds credential records from an explicit configuration list.
// Index i becomes KEY_{i+1}; empty, placeholder and malformed values are
// skipped with a warning. Discover fails only when nothing survives.
func Discover(values []string, quota int, logger *slog.Logger) ([]Credential, error) {
	logger = logging.NewComponentLogger(logger, "keypool")
	if quota <= 0 {
		return nil, fmt.Errorf("discover credentials: daily quota must be positive, got %d", quota)
	}

	creds := make([]Credential, 0, len(values))
	for i, raw := range values {
		id := fmt.Sprintf("KEY_%d", i+1)
		if reason := rejectReason(raw); reason != "" {
			logging.WarnWithContext(logger, "skipping rating credential", "credential_rejected",
				logging.String(logging.FieldCredential, id),
				logging.String("reason", reason),
				logging.String(logging.FieldImpact, "credential will not be used"),
				logging.String(logging.FieldErrorHint, "check OMDB_API_KEY values or omdb.keys"),
			)
			continue
		}
		secret := strings.TrimSpace(raw)
		creds = append(creds, Credential{
			ID:         id,
			Secret:     secret,
			DailyQuota: quota,
			Active:     true,
		})
		logger.Info("rating credential loaded",
			logging.String(logging.FieldCredential, id),
			logging.String("masked", Mask(secret)),
			logging.Int("daily_quota", quota),
		)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	return creds, nil
}

func rejectReason(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "empty"
	}
	lower := strings.ToLower(trimmed)
	if _, ok := placeholderExact[lower]; ok {
		return "placeholder"
	}
	if repeatedX.MatchString(trimmed) {
		return "placeholder"
	}
	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		return "placeholder"
	}
	if strings.HasPrefix(lower, "your") && strings.Contains(lower, "key") {
		return "placeholder"
	}
	if len(trimmed) < minSecretLength {
		return "too short"
	}
	if !wellFormed.MatchString(trimmed) {
		return "malformed"
	}
	return ""
}

// Mask hides all but the first two and last two characters of a secret.
func Mask(secret string) string {
	secret = strings.TrimSpace(secret)
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + "…" + secret[len(secret)-2:]
}
