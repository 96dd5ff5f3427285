// Package stepfun is a client for the Stepfun text-to-speech API: key
// validation, the system voice catalog and speech synthesis.
//
// Every request goes through the same pipeline. Request decorators add the
// product headers and response validators translate any status >= 400 into a
// classified *Error, so the individual operations only deal with successful
// responses.
package stepfun

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/metrics"
)

// API endpoints and paths.
const (
	apiSystemVoices = "/v1/audio/system_voices"
	apiSpeech       = "/v1/audio/speech"
	paramModel      = "model"
)

// Defaults.
const (
	DefaultBaseURL   = "https://api.stepfun.com"
	DefaultUserAgent = "StepfunZapierIntegration/1.0.0"
	DefaultSourceTag = "zapier"
	DefaultTimeout   = 60 * time.Second
)

// Operation names used in logs and metrics.
const (
	opAuthenticate = "authenticate"
	opListVoices   = "voices"
	opSynthesize   = "speech"
)

// Client talks to the Stepfun API. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	sourceTag  string
	decorators []RequestDecorator
	validators []ResponseValidator
	store      core.BlobStore
	metrics    *metrics.Recorder
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing or proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithProductHeaders overrides the User-Agent and X-Source values.
func WithProductHeaders(userAgent, sourceTag string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
		c.sourceTag = sourceTag
	}
}

// WithRequestDecorator appends a decorator after the product headers.
func WithRequestDecorator(decorator RequestDecorator) Option {
	return func(c *Client) {
		c.decorators = append(c.decorators, decorator)
	}
}

// WithResponseValidator appends a validator after the status check.
func WithResponseValidator(validator ResponseValidator) Option {
	return func(c *Client) {
		c.validators = append(c.validators, validator)
	}
}

// WithBlobStore sets the store that receives binary audio responses.
func WithBlobStore(store core.BlobStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = recorder
	}
}

// NewClient creates a Stepfun client.
func NewClient(log *logger.Logger, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		sourceTag:  DefaultSourceTag,
		decorators: nil,
		validators: nil,
		store:      nil,
		metrics:    nil,
		log:        log,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.decorators = append(
		[]RequestDecorator{ProductHeaders(client.userAgent, client.sourceTag)},
		client.decorators...,
	)
	client.validators = append([]ResponseValidator{ValidateStatus}, client.validators...)

	return client
}

// newRequest builds a request against the API with bearer authorization.
func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	query url.Values,
	apiKey string,
	body io.Reader,
) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerAuthorization, bearerScheme+apiKey)

	if body != http.NoBody {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	return req, nil
}

// do runs the request through the decorators, sends it and runs every
// validator on the response. The body is closed when a validator fails.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	for _, decorate := range c.decorators {
		decorate(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Stepfun API at %s: %w", c.baseURL, err)
	}

	for _, validate := range c.validators {
		validateErr := validate(resp)
		if validateErr != nil {
			closeErr := resp.Body.Close()
			if closeErr != nil {
				c.log.Warn("Failed to close response body: %v", closeErr)
			}

			return nil, validateErr
		}
	}

	return resp, nil
}

// getSystemVoices issues the read-only catalog request shared by the probe
// and the voice fetcher.
func (c *Client) getSystemVoices(ctx context.Context, apiKey string) (*http.Response, error) {
	query := url.Values{}
	query.Set(paramModel, core.DefaultModel)

	req, err := c.newRequest(ctx, http.MethodGet, apiSystemVoices, query, apiKey, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

func (c *Client) closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)

	closeErr := resp.Body.Close()
	if closeErr != nil {
		c.log.Warn("Failed to close response body: %v", closeErr)
	}
}

func (c *Client) recordFailure(operation string, err error) {
	kind := KindOf(err)
	if kind == "" {
		return
	}

	c.metrics.UpstreamFailure(operation, kind)
}
