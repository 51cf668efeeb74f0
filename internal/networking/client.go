package networking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/rafabd1/Nightshade/internal/utils"
)

const maxBodyBytes = 1 << 20 // response bodies past 1 MiB carry no verdict signal

// ProbeResponse holds the raw outcome of a single probe request. Err is set
// on transport-level failure, in which case the other fields are zero.
type ProbeResponse struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Latency    time.Duration
	Err        error
}

// Client issues probe requests against the session's endpoint. Each Client
// owns its transport and cookie jar; credentials come from the shared
// immutable SessionContext. Clone one Client per worker so connection pools
// never contend across workers.
type Client struct {
	session    *SessionContext
	timeout    time.Duration
	transport  *http.Transport
	httpClient *http.Client
	logger     utils.Logger
}

// NewClient creates a probe client bound to the given session context.
func NewClient(session *SessionContext, timeout time.Duration, logger utils.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return newClientWithTransport(session, timeout, transport, logger)
}

func newClientWithTransport(session *SessionContext, timeout time.Duration, transport *http.Transport, logger utils.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	jar.SetCookies(session.BaseURL(), session.Cookies())

	c := &Client{
		session:   session,
		timeout:   timeout,
		transport: transport,
		logger:    logger,
	}
	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c, nil
}

// Clone returns a client sharing the same immutable session context but with
// its own transport and cookie jar.
func (c *Client) Clone() (*Client, error) {
	return newClientWithTransport(c.session, c.timeout, c.transport.Clone(), c.logger)
}

// Session returns the shared session context.
func (c *Client) Session() *SessionContext {
	return c.session
}

// CloseIdleConnections releases the client's pooled connections.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// ProbeToken submits one candidate code to the redemption-check endpoint and
// returns the raw response. The per-request timeout is derived from ctx;
// callers that want in-flight probes to complete during run cancellation
// pass a context that outlives the run.
func (c *Client) ProbeToken(ctx context.Context, code string) ProbeResponse {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s := c.session
	form := s.form(code)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.ProbeURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return ProbeResponse{Err: fmt.Errorf("failed to build probe request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Origin", s.baseURL.String())
	req.Header.Set("Referer", s.baseURL.String()+"/")
	if s.csrfHeader != "" && s.csrfToken != "" {
		req.Header.Set(s.csrfHeader, s.csrfToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return ProbeResponse{Latency: latency, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ProbeResponse{Latency: time.Since(start), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debugf("[Client] POST %s code=%s status=%d bytes=%d latency=%s",
		s.ProbeURL(), code, resp.StatusCode, len(body), latency.Round(time.Millisecond))

	return ProbeResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header,
		Latency:    latency,
	}
}
