package networking

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rafabd1/Nightshade/internal/config"
	"github.com/rafabd1/Nightshade/internal/utils"
)

// SessionContext is the immutable bundle of credentials every probe carries:
// session cookie, CSRF cookie/token, optional extra cookies (e.g. an
// edge-protection clearance cookie, forwarded unchanged) and the control
// token used for the one-shot liveness check. Workers share one
// SessionContext by reference; only transports are cloned per worker.
type SessionContext struct {
	baseURL      *url.URL
	probePath    string
	tokenField   string
	ajaxField    string
	csrfField    string
	csrfHeader   string
	csrfToken    string
	cookies      []*http.Cookie
	controlToken string
	userAgent    string
}

// NewSessionContext builds the immutable session bundle from configuration.
func NewSessionContext(cfg *config.Config) (*SessionContext, error) {
	base, err := url.Parse(utils.NormalizeTargetURL(cfg.Target))
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", cfg.Target, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("target URL %q has no host", cfg.Target)
	}

	var cookies []*http.Cookie
	if cfg.SessionCookieValue != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.SessionCookieName, Value: cfg.SessionCookieValue})
	}
	csrfCookie := cfg.CSRFCookieValue
	if csrfCookie == "" {
		csrfCookie = cfg.CSRFToken
	}
	if csrfCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.CSRFCookieName, Value: csrfCookie})
	}
	for _, raw := range cfg.ExtraCookies {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("malformed extra cookie %q (want name=value)", raw)
		}
		cookies = append(cookies, &http.Cookie{Name: strings.TrimSpace(parts[0]), Value: parts[1]})
	}

	return &SessionContext{
		baseURL:      base,
		probePath:    cfg.ProbePath,
		tokenField:   cfg.TokenField,
		ajaxField:    cfg.AjaxField,
		csrfField:    cfg.CSRFField,
		csrfHeader:   cfg.CSRFHeader,
		csrfToken:    cfg.CSRFToken,
		cookies:      cookies,
		controlToken: strings.ToUpper(cfg.ControlToken),
		userAgent:    cfg.UserAgent,
	}, nil
}

// BaseURL returns the normalized target base URL.
func (s *SessionContext) BaseURL() *url.URL {
	u := *s.baseURL
	return &u
}

// ProbeURL returns the full URL of the redemption-check endpoint.
func (s *SessionContext) ProbeURL() string {
	return s.baseURL.String() + s.probePath
}

// Cookies returns a copy of the credential cookies.
func (s *SessionContext) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// ControlToken returns the token known to be valid, or "" when unset.
func (s *SessionContext) ControlToken() string {
	return s.controlToken
}

// form builds the probe form body for a candidate code.
func (s *SessionContext) form(code string) url.Values {
	form := url.Values{}
	form.Set(s.tokenField, code)
	if s.csrfField != "" && s.csrfToken != "" {
		form.Set(s.csrfField, s.csrfToken)
	}
	if s.ajaxField != "" {
		form.Set(s.ajaxField, "1")
	}
	return form
}
