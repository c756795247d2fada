package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/click-sentinel/config"
	"github.com/amirphl/click-sentinel/utils"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUpstreamRejected is matched by errors.Is when the upstream answered with a non-2xx status
	ErrUpstreamRejected = errors.New("upstream rejected block request")
	// ErrUpstreamUnreachable is matched by errors.Is when no answer was obtained
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// UpstreamBlocklistClient registers a source address on an advertiser's upstream exclusion list.
// A nil error means the upstream accepted the block.
type UpstreamBlocklistClient interface {
	BlockSource(ctx context.Context, customerID int64, ipAddress, memo string) error
}

// UpstreamRejectedError carries the upstream status and body
type UpstreamRejectedError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected block request: status %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamRejectedError) Unwrap() error { return ErrUpstreamRejected }

// UpstreamUnreachableError wraps a transport fault, timeout or an open breaker
type UpstreamUnreachableError struct {
	Err error
}

func (e *UpstreamUnreachableError) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *UpstreamUnreachableError) Unwrap() []error { return []error{ErrUpstreamUnreachable, e.Err} }

type ipExclusionRequest struct {
	FilterIP string `json:"filterIp"`
	Memo     string `json:"memo"`
}

// NaverAdClient calls the search-ad IP exclusion endpoint
type NaverAdClient struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
	Timeout    time.Duration

	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
	now     func() time.Time
}

// NewNaverAdClient builds a client from cfg. The client makes a single attempt per call.
func NewNaverAdClient(cfg config.NaverAdConfig, log *zap.Logger) *NaverAdClient {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = utils.DefaultUpstreamTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	trip := cfg.BreakerTrip
	if trip == 0 {
		trip = 5
	}
	openTimeout := cfg.BreakerOpen
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	c := &NaverAdClient{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		HTTPClient: &http.Client{},
		Timeout:    timeout,
		limiter:    limiter,
		log:        log.Named("naver_ad"),
		now:        time.Now,
	}

	c.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "naver-ad-api",
		MaxRequests: cfg.BreakerMax,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		// a rejection is an answer; only missing answers count against the upstream
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUpstreamRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c
}

func (c *NaverAdClient) Name() string { return "naver_ad" }

// SignRequest returns the base64 HMAC-SHA256 of "timestamp.method.path" keyed by secret
func SignRequest(secret, timestamp, method, path string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + method + "." + path))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BlockSource adds ipAddress to the exclusion list of customerID
func (c *NaverAdClient) BlockSource(ctx context.Context, customerID int64, ipAddress, memo string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return &UpstreamUnreachableError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.postExclusion(ctx, customerID, ipAddress, memo)
	})
	if err == nil {
		c.log.Info("Upstream accepted block",
			zap.Int64("customer_id", customerID),
			zap.String("ip", ipAddress))
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &UpstreamUnreachableError{Err: err}
	}
	c.log.Warn("Upstream block failed",
		zap.Int64("customer_id", customerID),
		zap.String("ip", ipAddress),
		zap.Error(err))
	return err
}

func (c *NaverAdClient) postExclusion(ctx context.Context, customerID int64, ipAddress, memo string) error {
	body, err := json.Marshal(ipExclusionRequest{FilterIP: ipAddress, Memo: memo})
	if err != nil {
		return fmt.Errorf("failed to encode block request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+utils.NaverIPExclusionPath, bytes.NewReader(body))
	if err != nil {
		return &UpstreamUnreachableError{Err: err}
	}

	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("X-Customer", strconv.FormatInt(customerID, 10))
	req.Header.Set("X-Signature", SignRequest(c.SecretKey, timestamp, http.MethodPost, utils.NaverIPExclusionPath))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &UpstreamUnreachableError{Err: err}
	}
	defer resp.Body.Close()

	// A 2xx status means the exclusion exists upstream whatever happens to the body.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)); err != nil {
			c.log.Warn("Failed to read accepted upstream response",
				zap.Int("status", resp.StatusCode),
				zap.String("ip", ipAddress),
				zap.Error(err))
		}
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &UpstreamRejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

var _ UpstreamBlocklistClient = (*NaverAdClient)(nil)
