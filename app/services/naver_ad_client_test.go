package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/click-sentinel/config"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testNaverConfig(baseURL string) config.NaverAdConfig {
	return config.NaverAdConfig{
		BaseURL:     baseURL,
		APIKey:      "access-license",
		SecretKey:   "secret",
		Timeout:     2 * time.Second,
		BreakerTrip: 3,
		BreakerOpen: time.Minute,
	}
}

func TestSignRequest(t *testing.T) {
	// HMAC-SHA256("secret", "1700000000000.POST./tool/ip-exclusions"), base64
	got := SignRequest("secret", "1700000000000", http.MethodPost, "/tool/ip-exclusions")
	assert.Equal(t, "RgS+fXMToI8yOzgKnirCWUjBCibBJd8xdD36YF9WnP0=", got)

	assert.NotEqual(t, got, SignRequest("other", "1700000000000", http.MethodPost, "/tool/ip-exclusions"))
	assert.NotEqual(t, got, SignRequest("secret", "1700000000001", http.MethodPost, "/tool/ip-exclusions"))
}

func TestNaverAdClient_BlockSource_Success(t *testing.T) {
	var (
		gotHeaders http.Header
		gotBody    ipExclusionRequest
		gotPath    string
		gotMethod  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewNaverAdClient(testNaverConfig(srv.URL+"/"), nil)
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	err := client.BlockSource(context.Background(), 1234567, "203.0.113.7", "Blocked by automation")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/tool/ip-exclusions", gotPath)
	assert.Equal(t, "1700000000000", gotHeaders.Get("X-Timestamp"))
	assert.Equal(t, "access-license", gotHeaders.Get("X-API-KEY"))
	assert.Equal(t, "1234567", gotHeaders.Get("X-Customer"))
	assert.Equal(t, SignRequest("secret", "1700000000000", http.MethodPost, "/tool/ip-exclusions"), gotHeaders.Get("X-Signature"))
	assert.Equal(t, ipExclusionRequest{FilterIP: "203.0.113.7", Memo: "Blocked by automation"}, gotBody)
}

func TestNaverAdClient_BlockSource_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":1018,"title":"invalid ip"}`))
	}))
	defer srv.Close()

	client := NewNaverAdClient(testNaverConfig(srv.URL), nil)
	err := client.BlockSource(context.Background(), 1, "203.0.113.7", "memo")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamRejected)
	assert.NotErrorIs(t, err, ErrUpstreamUnreachable)

	var rejected *UpstreamRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Contains(t, rejected.Body, "invalid ip")
}

func TestNaverAdClient_BlockSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewNaverAdClient(testNaverConfig(srv.URL), nil)
	err := client.BlockSource(context.Background(), 1, "203.0.113.7", "memo")
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}

func TestNaverAdClient_BlockSource_AcceptedWithTruncatedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 100\r\n\r\n{\"ok\":")
		_ = buf.Flush()
		_ = conn.Close()
	}))
	defer srv.Close()

	client := NewNaverAdClient(testNaverConfig(srv.URL), zaptest.NewLogger(t))
	err := client.BlockSource(context.Background(), 1, "203.0.113.7", "memo")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNaverAdClient_BlockSource_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testNaverConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewNaverAdClient(cfg, nil)

	err := client.BlockSource(context.Background(), 1, "203.0.113.7", "memo")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrUpstreamRejected)
}

func TestNaverAdClient_BlockSource_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewNaverAdClient(testNaverConfig(url), nil)
	err := client.BlockSource(context.Background(), 1, "203.0.113.7", "memo")
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
}

func TestNaverAdClient_BreakerOpensOnUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewNaverAdClient(testNaverConfig(url), nil)
	for range 3 {
		require.ErrorIs(t, client.BlockSource(context.Background(), 1, "203.0.113.7", "memo"), ErrUpstreamUnreachable)
	}

	err := client.BlockSource(context.Background(), 1, "203.0.113.7", "memo")
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestNaverAdClient_RejectionsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewNaverAdClient(testNaverConfig(srv.URL), nil)
	for range 5 {
		assert.ErrorIs(t, client.BlockSource(context.Background(), 1, "203.0.113.7", "memo"), ErrUpstreamRejected)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestNaverAdClient_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cfg := testNaverConfig(srv.URL)
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	client := NewNaverAdClient(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.BlockSource(ctx, 1, "203.0.113.7", "memo")
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
	assert.Equal(t, int32(0), calls.Load())
}
