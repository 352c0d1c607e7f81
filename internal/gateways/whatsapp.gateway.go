// Package gateway is the WhatsApp Business API client. One provider,
// bearer auth, bounded retries; the dispatcher treats it as a plain
// Transport.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

var ErrMissingBaseURL = errors.New("whatsapp api base url is required")

type Config struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

type sendRequest struct {
	To   string   `json:"to"`
	Type string   `json:"type"`
	Text textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	config *Config
	http   *fasthttp.Client

	totalSent   atomic.Int64
	totalFailed atomic.Int64
}

func NewClient(config *Config) (*Client, error) {
	if config == nil || config.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.MaxConns == 0 {
		config.MaxConns = 100
	}

	c := &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
	}

	logger.Info("whatsapp client initialized", "base_url", config.BaseURL, "timeout", config.Timeout.String())
	return c, nil
}

// Send delivers one text message and returns the provider message id.
// Transport-level failures are retried with a fixed delay; a 4xx from
// the API is returned immediately since a retry cannot change it.
func (c *Client) Send(ctx context.Context, phone, body string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		To:   phone,
		Type: "text",
		Text: textBody{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		start := time.Now()
		id, retryable, err := c.doSend(ctx, reqBody)
		if err == nil {
			c.totalSent.Add(1)
			logger.Info("message sent", "phone", phone, "provider_id", id, "latency_ms", time.Since(start).Milliseconds())
			return id, nil
		}

		c.totalFailed.Add(1)
		lastErr = err
		if !retryable {
			return "", err
		}
		logger.Warn("send failed, retrying", "phone", phone, "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("send failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doSend(ctx context.Context, body []byte) (string, bool, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/v1/messages")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusOK || status == fasthttp.StatusCreated || status == fasthttp.StatusAccepted:
	case status >= 500:
		return "", true, fmt.Errorf("provider error: status %d", status)
	default:
		return "", false, fmt.Errorf("rejected by provider: status %d, body: %s", status, resp.Body())
	}

	var parsed sendResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", false, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("provider error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Messages) == 0 {
		return "", false, errors.New("response carried no message id")
	}
	return parsed.Messages[0].ID, false, nil
}

// Stats reports cumulative send counters.
func (c *Client) Stats() (sent, failed int64) {
	return c.totalSent.Load(), c.totalFailed.Load()
}
