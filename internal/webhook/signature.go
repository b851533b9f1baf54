package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "x-beam-signature"
	TimestampHeader = "x-beam-timestamp"

	DefaultTolerance = 300 * time.Second
)

type Reason string

const (
	ReasonInvalidSignatureFormat Reason = "invalid_signature_format"
	ReasonInvalidTimestamp       Reason = "invalid_timestamp"
	ReasonOutOfTolerance         Reason = "timestamp_out_of_tolerance"
	ReasonMismatch               Reason = "mismatch"
	ReasonException              Reason = "exception"
	ReasonMissingHeaders         Reason = "missing_headers"
)

type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

var (
	hex64Pattern  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	base64Charset = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

type Verifier struct {
	tolerance time.Duration
	now       func() time.Time
}

type VerifierOption func(*Verifier)

func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) Tolerance() time.Duration {
	return v.tolerance
}

func (v *Verifier) Now() time.Time {
	return v.now()
}

var defaultVerifier = NewVerifier()

// Verify checks a signature with the default tolerance against the wall clock.
func Verify(payload []byte, signatureHeader, timestampHeader, secret string) Result {
	return defaultVerifier.Verify(payload, signatureHeader, timestampHeader, secret)
}

// Verify authenticates payload as "{timestamp}.{payload}" signed with
// HMAC-SHA256. The secret is tried both as raw bytes and, when it looks like
// base64, as its decoded form.
func (v *Verifier) Verify(payload []byte, signatureHeader, timestampHeader, secret string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Valid: false, Reason: ReasonException}
		}
	}()

	extracted := ExtractSignature(signatureHeader)
	if !hex64Pattern.MatchString(extracted) {
		return Result{Reason: ReasonInvalidSignatureFormat}
	}
	received, err := hex.DecodeString(extracted)
	if err != nil {
		return Result{Reason: ReasonInvalidSignatureFormat}
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestampHeader), 10, 64)
	if err != nil {
		return Result{Reason: ReasonInvalidTimestamp}
	}

	if !withinTolerance(v.now().Unix(), ts, int64(v.tolerance/time.Second)) {
		return Result{Reason: ReasonOutOfTolerance}
	}

	if hmac.Equal(received, digest([]byte(secret), timestampHeader, payload)) {
		return Result{Valid: true}
	}
	if decoded, ok := decodeBase64Secret(secret); ok {
		if hmac.Equal(received, digest(decoded, timestampHeader, payload)) {
			return Result{Valid: true}
		}
	}

	return Result{Reason: ReasonMismatch}
}

// withinTolerance compares in seconds so far-off timestamps cannot wrap.
func withinTolerance(now, ts, tolerance int64) bool {
	if ts >= now {
		return ts-now >= 0 && ts-now <= tolerance
	}
	return now-ts > 0 && now-ts <= tolerance
}

// Sign returns the hex signature the gateway would send for payload.
func Sign(payload []byte, timestamp, secret string) string {
	return hex.EncodeToString(digest([]byte(secret), timestamp, payload))
}

// SignNow signs payload with the current unix time and returns both headers.
func (v *Verifier) SignNow(payload []byte, secret string) (signature, timestamp string) {
	timestamp = strconv.FormatInt(v.now().Unix(), 10)
	return Sign(payload, timestamp, secret), timestamp
}

// ExtractSignature accepts either a bare hex digest or a comma separated
// "k=v" list carrying it under sha256 or v1.
func ExtractSignature(header string) string {
	raw := strings.TrimSpace(header)
	for _, part := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "sha256", "v1":
			return value
		}
	}
	return raw
}

func digest(key []byte, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(payload)
	return mac.Sum(nil)
}

func decodeBase64Secret(secret string) ([]byte, bool) {
	if secret == "" || len(secret)%4 != 0 || !base64Charset.MatchString(secret) {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(decoded) == 0 {
		return nil, false
	}
	return decoded, true
}
