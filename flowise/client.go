package flowise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/architect-ai/flowise-go/flowise/pkg/config"
	"github.com/architect-ai/flowise-go/flowise/pkg/constants"
	"github.com/architect-ai/flowise-go/flowise/pkg/logger"
)

// Client executes flows hosted on a FlowiseAI workflow engine. A Client is
// immutable after construction and safe for concurrent use; all calls share
// one pooled HTTP transport.
type Client struct {
	settings   Settings
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

type clientOptions struct {
	provider   config.Provider
	httpClient *http.Client
	log        logger.Logger
}

// Option customizes client construction.
type Option func(*clientOptions)

// WithProvider overrides the configuration provider. The default reads
// configs/global_settings.yaml under the framework root.
func WithProvider(provider config.Provider) Option {
	return func(o *clientOptions) {
		o.provider = provider
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithLogger overrides the logger used by the client.
func WithLogger(log logger.Logger) Option {
	return func(o *clientOptions) {
		o.log = log
	}
}

// NewClient creates a client from the configuration rooted at frameworkRoot.
// The flowise section resolves enablement, base URL, timeout, and the name of
// the environment variable holding the API key. Missing configuration falls
// back to defaults and missing credentials only log a warning; construction
// does not fail for either.
func NewClient(frameworkRoot string, opts ...Option) (*Client, error) {
	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}

	log := options.log
	if log == nil {
		log = logger.GetDefault()
	}

	provider := options.provider
	if provider == nil {
		if strings.TrimSpace(frameworkRoot) == "" {
			return nil, errors.New("framework root is required")
		}
		provider = config.NewLoader(frameworkRoot, log)
	}

	settings := settingsFromSection(provider.GetSection(constants.FlowiseSectionKey), log)

	var apiKey string
	if settings.APIKeyEnv != "" {
		apiKey = os.Getenv(settings.APIKeyEnv)
		if apiKey == "" {
			log.Warn("flowise API key environment variable is configured but not set, proceeding without authentication",
				"env", settings.APIKeyEnv)
		}
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(settings.DefaultTimeout)
	}

	client := &Client{
		settings:   settings,
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log,
	}

	log.Info("flowise client initialized", "base_url", settings.BaseURL)
	if !settings.Enabled {
		log.Info("flowise integration is disabled in configuration")
	}

	return client, nil
}

// Settings returns the resolved configuration.
func (c *Client) Settings() Settings {
	return c.settings
}

// RunFlow executes a flow and decodes its JSON response. The endpoint is
// either an absolute URL or a path joined to the configured base URL. The
// payload forms the JSON request body.
func (c *Client) RunFlow(ctx context.Context, endpoint string, payload any) (any, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	resp, err := c.post(runCtx, ctx, endpoint, payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransportError(ctx, endpoint, err)
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		msg := fmt.Sprintf("failed to parse JSON response from flowise engine: %s", string(body))
		c.log.Error(msg, "endpoint", endpoint)
		return nil, newError(ErrorKindConnection, msg, withCause(err))
	}

	return result, nil
}

// RunFlowStream executes a flow and returns a single-pass Stream over the
// raw response body. The stream must be closed by the caller. The configured
// timeout bounds the wait for the initial response and then each subsequent
// chunk read.
func (c *Client) RunFlowStream(ctx context.Context, endpoint string, payload any) (*Stream, error) {
	resp, err := c.post(ctx, ctx, endpoint, payload, true)
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body, c.settings.DefaultTimeout), nil
}

func (c *Client) post(ctx, callerCtx context.Context, endpoint string, payload any, stream bool) (*http.Response, error) {
	if !c.settings.Enabled {
		c.log.Warn("attempting to run a flow while flowise integration is disabled")
	}

	url := resolveEndpoint(c.settings.BaseURL, endpoint)

	body, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("failed to encode flow payload", "endpoint", url, "error", err)
		return nil, fmt.Errorf("failed to encode flow payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Error("failed to build flow request", "endpoint", url, "error", err)
		return nil, newError(
			ErrorKindConnection,
			fmt.Sprintf("failed to build request for %s", url),
			withCause(err),
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	c.log.Debug("dispatching flow request", "url", url, "stream", stream)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(callerCtx, url, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		c.log.Error("flowise engine returned an error status", "endpoint", url, "status", resp.StatusCode)
		return nil, newAPIError(resp.StatusCode, raw)
	}

	return resp, nil
}

// classifyTransportError maps a transport failure onto the error taxonomy.
// callerCtx is the caller's own context, before any client-imposed deadline:
// when it expired first the failure is attributed to the caller's deadline
// rather than to the configured timeout, which was never reached.
func (c *Client) classifyTransportError(callerCtx context.Context, endpoint string, err error) *Error {
	if isTimeout(err) {
		msg := fmt.Sprintf("request to flowise engine timed out after %d seconds", c.settings.DefaultTimeout)
		if callerCtx != nil && errors.Is(callerCtx.Err(), context.DeadlineExceeded) {
			msg = "request to flowise engine stopped by the caller's deadline"
		}
		c.log.Error(msg, "endpoint", endpoint)
		return newError(ErrorKindTimeout, msg, withCause(err))
	}

	c.log.Error("failed to connect to flowise engine", "endpoint", endpoint, "error", err)
	return newError(ErrorKindConnection, "failed to connect to flowise engine", withCause(err))
}

func (c *Client) timeout() time.Duration {
	return time.Duration(c.settings.DefaultTimeout) * time.Second
}

// resolveEndpoint joins a relative endpoint to the base URL with exactly one
// separating slash. Absolute http/https endpoints pass through unchanged.
func resolveEndpoint(baseURL, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// newHTTPClient builds the pooled transport shared by all calls. The timeout
// bounds dialing and the wait for response headers rather than the whole
// exchange, so streaming bodies can outlive it.
func newHTTPClient(timeoutSecs int) *http.Client {
	timeout := time.Duration(timeoutSecs) * time.Second
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   10,
		},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func userAgent() string {
	return fmt.Sprintf("%s/%s", constants.SDKName, Version)
}
