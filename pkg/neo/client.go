package neo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/logger"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL    = "https://nimbus.actronair.com.au"
	defaultDeviceName = "actron-neo-bridge"
)

// maxErrorBody bounds how much of an error response body is kept for messages
const maxErrorBody = 512

// Config defines runtime configuration for the Neo client.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// Timeout bounds every outbound request. Zero means 30s.
	Timeout time.Duration

	// MinRequestSpacing is the enforced minimum gap between outbound calls,
	// shared by refresh and command paths. Zero disables spacing.
	MinRequestSpacing time.Duration

	// DeviceName and DeviceID identify this bridge to the pairing endpoint.
	// Defaults are derived when empty.
	DeviceName string
	DeviceID   string

	Logger     *logger.Logger
	HTTPClient *http.Client
}

// Client talks to the ActronAir Neo cloud API.
//
// It owns the credential lifecycle (pairing token + bearer token) and
// enforces minimum spacing between outbound calls. All methods are safe for
// concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	deviceName string
	deviceID   string

	httpClient *http.Client
	log        *logger.Logger
	limiter    *spacingLimiter

	// tokenMu guards the credential pair. Held across refresh so concurrent
	// callers never issue duplicate token-refresh calls.
	tokenMu      sync.Mutex
	pairingToken string
	token        *oauth2.Token
}

// NewClient creates a Neo API client. Configuration problems are reported
// as KindConfig errors.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, &Error{Kind: KindConfig, Op: "new client", Msg: "username and password are required"}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, &Error{Kind: KindConfig, Op: "new client", Msg: fmt.Sprintf("invalid base URL %q", cfg.BaseURL), Err: err}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Noop()
	}

	deviceName := cfg.DeviceName
	if deviceName == "" {
		deviceName = defaultDeviceName
	}
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = defaultDeviceName
	}

	return &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		deviceName: deviceName,
		deviceID:   deviceID,
		httpClient: httpClient,
		log:        log,
		limiter:    newSpacingLimiter(cfg.MinRequestSpacing),
	}, nil
}

// ListSystems returns the AC systems attached to the account.
func (c *Client) ListSystems(ctx context.Context) ([]System, error) {
	var resp SystemsResponse
	if err := c.getJSON(ctx, "/api/v0/client/ac-systems", url.Values{"includeNeo": {"true"}}, &resp, "list systems"); err != nil {
		return nil, err
	}
	return resp.Embedded.ACSystems, nil
}

// FetchStatus returns the latest full state document for a system.
func (c *Client) FetchStatus(ctx context.Context, serial string) (*StatusResponse, error) {
	if serial == "" {
		return nil, &Error{Kind: KindConfig, Op: "fetch status", Msg: "serial is required"}
	}
	var resp StatusResponse
	if err := c.getJSON(ctx, "/api/v0/client/ac-systems/status/latest", url.Values{"serial": {serial}}, &resp, "fetch status"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendCommand issues a write to a system. The snapshot is not updated here;
// the caller requests a coordinator refresh to observe the effect.
func (c *Client) SendCommand(ctx context.Context, serial string, cmd Command) error {
	if serial == "" {
		return &Error{Kind: KindConfig, Op: "send command", Msg: "serial is required"}
	}
	if err := cmd.validate(); err != nil {
		return err
	}

	body, err := json.Marshal(cmd.envelope())
	if err != nil {
		return &Error{Kind: KindConfig, Op: "send command", Msg: "encoding command", Err: err}
	}

	query := url.Values{"serial": {serial}}
	err = c.doJSON(ctx, http.MethodPost, "/api/v0/client/ac-systems/cmds/send", query, body, "application/json", true, "send command", nil)
	if err != nil && cmd.zoneScoped() {
		if e, ok := AsError(err); ok && (e.StatusCode == 400 || e.StatusCode == 404) {
			e.Kind = KindZone
		}
	}
	return err
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any, op string) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, "", true, op, out)
}

// postForm performs an unauthenticated form POST (token endpoints).
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any, op string) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, []byte(form.Encode()), "application/x-www-form-urlencoded", false, op, out)
}

// doJSON issues one API request. Authenticated requests that come back 401
// refresh the token once and retry the original call exactly once; a second
// rejection surfaces as KindAuth.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, authed bool, op string, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.doOnce(ctx, method, path, query, body, contentType, authed, op, out)
		if err == nil {
			return nil
		}

		e, ok := AsError(err)
		if !ok {
			return err
		}
		if authed && e.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.log.Debug("Access token rejected, refreshing once", "op", op)
			c.invalidateAccessToken()
			continue
		}
		if e.StatusCode == http.StatusUnauthorized {
			e.Kind = KindAuth
		}
		return err
	}
}

// doOnce issues a single request with rate-limit spacing and timeout.
func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, authed bool, op string, out any) error {
	if err := c.limiter.wait(ctx); err != nil {
		return &Error{Kind: KindAPI, Op: op, Msg: "cancelled while waiting for rate limit", Err: err}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Kind: KindConfig, Op: op, Msg: "building request", Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		token, err := c.ensureAccessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindAPI, Op: op, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, op)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindAPI, Op: op, Msg: "decoding response", Err: err}
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func (c *Client) statusError(resp *http.Response, op string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(snippet))

	e := &Error{Op: op, StatusCode: resp.StatusCode, Msg: msg}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		// Kind assigned by doJSON after the single refresh-retry
		e.Kind = KindAPI
	case http.StatusForbidden:
		e.Kind = KindAuth
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e.Kind = KindOffline
	default:
		e.Kind = KindAPI
	}
	return e
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// spacingLimiter enforces a minimum gap between outbound calls so the bridge
// stays under the vendor's request limit regardless of which path issues
// the call.
type spacingLimiter struct {
	mu      sync.Mutex
	spacing time.Duration
	next    time.Time
}

func newSpacingLimiter(spacing time.Duration) *spacingLimiter {
	return &spacingLimiter{spacing: spacing}
}

// wait blocks until the caller may proceed, or the context ends.
func (l *spacingLimiter) wait(ctx context.Context) error {
	if l.spacing <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	wait := l.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Claim the slot before sleeping so concurrent callers queue up behind it
	start := now
	if l.next.After(now) {
		start = l.next
	}
	l.next = start.Add(l.spacing)
	l.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
