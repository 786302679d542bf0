// Package opencloud implements the Roblox Open Cloud client used to stage
// binaries, spawn Luau execution session tasks, poll them and read their logs.
package opencloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// HeaderAPIKey carries the Open Cloud credential.
	HeaderAPIKey = "x-api-key"
	// HeaderRequestID correlates a request with service-side logs.
	HeaderRequestID = "x-request-id"

	apiPrefix = "/cloud/v2/"
)

// Config holds the configuration for the Open Cloud client.
type Config struct {
	// BaseURL is the service root, e.g. "https://apis.roblox.com".
	BaseURL string

	// APIKey is sent on every Open Cloud request. It is never sent to
	// pre-signed upload URIs.
	APIKey string

	// RequestTimeout bounds a single request. 0 leaves it to the transport.
	RequestTimeout time.Duration

	// RateLimit is the sustained requests per second. 0 disables pacing.
	RateLimit float64
	RateBurst int

	UserAgent string
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "https://apis.roblox.com",
		RateBurst: 1,
		UserAgent: "luau-runner",
	}
}

// Observer receives one call per completed request.
type Observer interface {
	ObserveRequest(op string, status int, elapsed time.Duration, err error)
}

// Client talks to Open Cloud. It is safe for concurrent use.
type Client struct {
	config   *Config
	agent    *fiber.Client
	limiter  *rate.Limiter
	observer Observer
}

// New creates a new Open Cloud client.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	agent := fiber.AcquireClient()
	agent.UserAgent = config.UserAgent
	agent.JSONEncoder = sonic.Marshal
	agent.JSONDecoder = sonic.Unmarshal

	c := &Client{
		config: config,
		agent:  agent,
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return c
}

// SetObserver installs o as the request observer.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Close releases the underlying fiber client.
func (c *Client) Close() {
	fiber.ReleaseClient(c.agent)
}

// URL returns the absolute URL of an Open Cloud v2 resource path.
func (c *Client) URL(path string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + apiPrefix + strings.TrimPrefix(path, "/")
}

// request describes one outgoing call.
type request struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
	// presigned requests carry no API key.
	presigned bool
}

// send performs r and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	requestID := uuid.NewString()
	transportErr := func(err error) *APIError {
		return &APIError{
			Code:      ErrCodeTransport,
			Op:        r.op,
			Method:    r.method,
			URL:       r.url,
			RequestID: requestID,
			Cause:     err,
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, transportErr(err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportErr(err)
		}
	}

	var a *fiber.Agent
	switch r.method {
	case fiber.MethodPost:
		a = c.agent.Post(r.url)
	case fiber.MethodPut:
		a = c.agent.Put(r.url)
	default:
		a = c.agent.Get(r.url)
	}
	if timeout := c.timeout(ctx); timeout > 0 {
		a.Timeout(timeout)
	}
	a.Set(HeaderRequestID, requestID)
	if r.presigned {
		// the signature covers the path as issued
		a.Request().URI().DisablePathNormalizing = true
	} else {
		a.Set(HeaderAPIKey, c.config.APIKey)
	}
	if r.body != nil {
		a.Body(r.body)
		a.ContentType(r.contentType)
	}

	start := time.Now()
	statusCode, respBody, errs := a.Bytes()

	var err error
	switch {
	case len(errs) > 0:
		err = transportErr(errs[0])
	case ctx.Err() != nil:
		err = transportErr(ctx.Err())
	case statusCode < fiber.StatusOK || statusCode >= fiber.StatusMultipleChoices:
		err = newStatusError(r.op, r.method, r.url, requestID, statusCode, respBody)
	}
	if c.observer != nil {
		c.observer.ObserveRequest(r.op, statusCode, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// timeout returns the per-request timeout, shortened to the context deadline.
func (c *Client) timeout(ctx context.Context) time.Duration {
	timeout := c.config.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (timeout == 0 || remaining < timeout) {
			timeout = remaining
		}
	}
	return timeout
}

func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	body, err := c.send(ctx, request{op: op, method: fiber.MethodGet, url: url})
	if err != nil {
		return err
	}
	return decode(op, body, out)
}

func (c *Client) postJSON(ctx context.Context, op, url string, in, out any) error {
	payload, err := sonic.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}
	body, err := c.send(ctx, request{
		op:          op,
		method:      fiber.MethodPost,
		url:         url,
		body:        payload,
		contentType: fiber.MIMEApplicationJSON,
	})
	if err != nil {
		return err
	}
	return decode(op, body, out)
}

func decode(op string, body []byte, out any) error {
	if err := sonic.Unmarshal(body, out); err != nil {
		return &APIError{Code: ErrCodeDecode, Op: op, Cause: err}
	}
	return nil
}
