package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
)

const (
	DefaultInterval       = 2 * time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultRequestTimeout = 5 * time.Second

	statusPath = "/api/payment-status"
)

var (
	ErrPaymentFailed  = errors.New("payment failed")
	ErrPaymentExpired = errors.New("payment expired")
	ErrPollTimeout    = errors.New("payment status polling timed out")
)

// Status is the subset of the status endpoint the poller reads.
type Status struct {
	ChargeID      string         `json:"chargeId"`
	Status        payment.Status `json:"status"`
	Amount        *int64         `json:"amount"`
	PaymentMethod *string        `json:"paymentMethod"`
	ReferenceID   *string        `json:"referenceId"`
	Message       string         `json:"message,omitempty"`
}

type Result struct {
	Status   Status
	Attempts int
	Elapsed  time.Duration
}

// Poller follows one charge on the relay until it settles, the way the kiosk
// screen does.
type Poller struct {
	baseURL        string
	interval       time.Duration
	timeout        time.Duration
	requestTimeout time.Duration
	http           *http.Client
	logger         *slog.Logger
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout sets the hard ceiling for one Wait call.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.requestTimeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) {
		if c != nil {
			p.http = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) *Poller {
	p := &Poller{
		baseURL:        strings.TrimRight(baseURL, "/"),
		interval:       DefaultInterval,
		timeout:        DefaultTimeout,
		requestTimeout: DefaultRequestTimeout,
		http:           &http.Client{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls until the charge succeeds, fails or expires. Failed and expired
// charges come back with the last status and ErrPaymentFailed or
// ErrPaymentExpired. The ceiling applies whatever ctx allows.
func (p *Poller) Wait(ctx context.Context, chargeID string) (Result, error) {
	if strings.TrimSpace(chargeID) == "" {
		return Result{}, errors.New("poller: charge id is required")
	}

	started := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	result := Result{}
	for {
		result.Attempts++
		status, err := p.fetch(waitCtx, chargeID)
		result.Elapsed = time.Since(started)

		if err != nil {
			p.logger.Warn("Wait: status check failed", "charge_id", chargeID, "attempt", result.Attempts, "error", err)
		} else {
			result.Status = status
			switch status.Status {
			case payment.StatusSucceeded:
				p.logger.Info("Wait: payment succeeded", "charge_id", chargeID, "attempts", result.Attempts)
				return result, nil
			case payment.StatusFailed:
				return result, ErrPaymentFailed
			case payment.StatusExpired:
				return result, ErrPaymentExpired
			}
			p.logger.Debug("Wait: payment pending", "charge_id", chargeID, "attempt", result.Attempts)
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return result, err
			}
			p.logger.Warn("Wait: polling ceiling reached", "charge_id", chargeID, "attempts", result.Attempts)
			return result, ErrPollTimeout
		case <-ticker.C:
		}
	}
}

func (p *Poller) fetch(ctx context.Context, chargeID string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	endpoint := p.baseURL + statusPath + "?chargeId=" + url.QueryEscape(chargeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Status{}, fmt.Errorf("status request: unexpected status %d", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&status); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}
