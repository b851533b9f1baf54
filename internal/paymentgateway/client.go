package paymentgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal"
	types "github.com/frahmantamala/photobooth-payment/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
)

const (
	DefaultUserAgent     = "Photobooth-Payment-API/1.0"
	DefaultTimeout       = 30 * time.Second
	DefaultLookupTimeout = 10 * time.Second

	chargesPath     = "/api/v1/charges"
	maxResponseSize = 1 << 20

	opCreateCharge = "create_charge"
	opGetCharge    = "get_charge"
)

var (
	ErrNotConfigured   = errors.New("payment gateway credentials are not configured")
	ErrTimeout         = errors.New("payment gateway timed out")
	ErrUnavailable     = errors.New("payment gateway unreachable")
	ErrInvalidResponse = errors.New("payment gateway returned invalid JSON")
	ErrMissingChargeID = errors.New("payment gateway response has no chargeId")
)

type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindRejected        ErrorKind = "rejected"
)

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Message    string
	Detail     interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment gateway %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

type Config struct {
	BaseURL       string
	APIKey        string
	MerchantID    string
	Timeout       time.Duration
	LookupTimeout time.Duration
	UserAgent     string
	HTTPClient    *http.Client
}

type Client struct {
	baseURL       string
	apiKey        string
	merchantID    string
	timeout       time.Duration
	lookupTimeout time.Duration
	userAgent     string
	http          *http.Client
	logger        *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	lookupTimeout := config.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		apiKey:        config.APIKey,
		merchantID:    config.MerchantID,
		timeout:       timeout,
		lookupTimeout: lookupTimeout,
		userAgent:     userAgent,
		http:          httpClient,
		logger:        logger,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != "" && c.merchantID != ""
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateCharge posts a charge and returns the gateway's reply. The call is
// bounded by the configured timeout regardless of ctx.
func (c *Client) CreateCharge(ctx context.Context, req *types.ChargeRequest) (*types.ChargeResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	status, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+chargesPath, body)
	if err != nil {
		metrics.GatewayRequest(opCreateCharge, metrics.ResultError, started)
		c.logger.Error("CreateCharge: gateway call failed", "error", err, "reference_id", req.ReferenceID)
		return nil, err
	}

	if status < 200 || status > 299 {
		metrics.GatewayRequest(opCreateCharge, metrics.ResultError, started)
		apiErr := newAPIError(status, respBody)
		c.logger.Error("CreateCharge: gateway rejected charge",
			"status", status,
			"kind", apiErr.Kind,
			"reference_id", req.ReferenceID)
		return nil, apiErr
	}

	var charge types.ChargeResponse
	if err := json.Unmarshal(respBody, &charge); err != nil {
		metrics.GatewayRequest(opCreateCharge, metrics.ResultError, started)
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if charge.ChargeID == "" {
		metrics.GatewayRequest(opCreateCharge, metrics.ResultError, started)
		return nil, ErrMissingChargeID
	}

	metrics.GatewayRequest(opCreateCharge, metrics.ResultSuccess, started)
	c.logger.Info("CreateCharge: charge created",
		"charge_id", charge.ChargeID,
		"reference_id", req.ReferenceID,
		"action_required", charge.ActionRequired,
		"duration_ms", time.Since(started).Milliseconds())

	return &charge, nil
}

// GetCharge looks a charge up by id. It uses the shorter lookup timeout.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*types.Charge, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := internal.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	started := time.Now()
	endpoint := c.baseURL + chargesPath + "/" + url.PathEscape(chargeID)
	status, respBody, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		metrics.GatewayRequest(opGetCharge, metrics.ResultError, started)
		return nil, err
	}

	if status < 200 || status > 299 {
		metrics.GatewayRequest(opGetCharge, metrics.ResultError, started)
		return nil, newAPIError(status, respBody)
	}

	var charge types.Charge
	if err := json.Unmarshal(respBody, &charge); err != nil {
		metrics.GatewayRequest(opGetCharge, metrics.ResultError, started)
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if charge.ChargeID == "" {
		charge.ChargeID = chargeID
	}

	metrics.GatewayRequest(opGetCharge, metrics.ResultSuccess, started)
	return &charge, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.basicAuth())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, classifyTransportError(ctx, err)
	}

	return resp.StatusCode, respBody, nil
}

func (c *Client) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.merchantID + ":" + c.apiKey))
}

func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func newAPIError(status int, body []byte) *APIError {
	var parsed types.ErrorBody
	_ = json.Unmarshal(body, &parsed)

	switch status {
	case http.StatusUnauthorized:
		return &APIError{StatusCode: status, Kind: KindUnauthenticated, Message: "Invalid API credentials", Detail: parsed.Error}
	case http.StatusBadRequest:
		return &APIError{StatusCode: status, Kind: KindInvalidRequest, Message: "Payment service rejected the request", Detail: parsed.Error}
	default:
		return &APIError{StatusCode: status, Kind: KindRejected, Message: "Payment service error", Detail: parsed.Error}
	}
}
