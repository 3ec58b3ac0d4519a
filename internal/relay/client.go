package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Circuit breaker settings for the chat service.
const (
	breakerMaxFailures uint32        = 5
	breakerTimeout     time.Duration = 30 * time.Second
	breakerInterval    time.Duration = 60 * time.Second
)

// maxReplyBytes is the maximum body size read from the non-streaming endpoint.
const maxReplyBytes = 1 << 20 // 1 MB

// Prompt carries one user turn to the chat service. All four fields are
// sent as query parameters even when empty.
type Prompt struct {
	Message string
	Agent   string
	Model   string
	Context string
}

func (p Prompt) query() url.Values {
	q := url.Values{}
	q.Set("message", p.Message)
	q.Set("agent", p.Agent)
	q.Set("model", p.Model)
	q.Set("context", p.Context)
	return q
}

// ChatClient talks to the chat service. Connection opens are rate limited
// and routed through a circuit breaker so a dead service fails fast instead
// of piling up requests. Streaming requests use a client without an overall
// timeout; the stream stays open as long as the server keeps sending.
type ChatClient struct {
	baseURL      string
	client       *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	logger       *slog.Logger
}

// NewChatClient creates a client for the chat service at baseURL.
func NewChatClient(baseURL string, timeout time.Duration, perSecond float64, burst int, logger *slog.Logger) (*ChatClient, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	transport := newPooledTransport()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "chat",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &ChatClient{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		// No overall timeout for streaming responses
		streamClient: &http.Client{
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		breaker: breaker,
		logger:  logger,
	}, nil
}

// newPooledTransport creates an http.Transport sized for a single chat
// service host with long-lived connections.
func newPooledTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// Stream opens the streaming chat endpoint and returns the response body.
// The caller owns the body and must close it. The breaker protects the
// connection open; read errors after that are the caller's to handle.
func (c *ChatClient) Stream(ctx context.Context, p Prompt) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/api/chat/stream?" + p.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.streamClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("chat service circuit open: %w", err)
		}
		return nil, err
	}

	return resp.Body, nil
}

// Complete calls the non-streaming chat endpoint and returns the full reply.
func (c *ChatClient) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/api/chat?" + p.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("chat service circuit open: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var wire struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return wire.Reply, nil
}
